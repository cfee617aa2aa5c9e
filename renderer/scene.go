// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"

	"honnef.co/go/aspic/geom"
	"honnef.co/go/aspic/gfx"
	"honnef.co/go/aspic/program"
)

// closureTolerance bounds the summed zero line integral of a shape's
// outline.
const closureTolerance = 1e-6

// Shape is one paint operation: a closed outline, the shading program
// evaluated inside it, and the blend mode used to composite it onto the
// shapes below.
type Shape struct {
	// Edges is the shape's outline. It must be closed and positively
	// wound: regions enclosed with negative winding have no coverage. A
	// full-area shape may leave it empty, covering the whole target.
	Edges []geom.Edge
	// Program produces the shape's color. It must not be nil.
	Program program.Node
	// Mode composites the shape onto the scene built so far.
	Mode gfx.BlendMode
	// FullArea declares that the shape covers its entire bounds with
	// coverage one, skipping per-pixel coverage work.
	FullArea bool
}

// Scene is an ordered list of shapes. Paint order is append order.
type Scene struct {
	Shapes []Shape
}

// Reset empties the scene for reuse, keeping allocations.
func (s *Scene) Reset() {
	s.Shapes = s.Shapes[:0]
}

// Append adds a shape on top of the scene. It panics if the outline is
// not closed or the program is missing; malformed shapes would silently
// corrupt coverage in the raster passes.
func (s *Scene) Append(shape Shape) {
	if shape.Program == nil {
		panic("shape without a program")
	}
	if len(shape.Edges) == 0 && !shape.FullArea {
		panic("shape without an outline must be marked full area")
	}
	if len(shape.Edges) > 0 && !geom.IsClosed(shape.Edges, closureTolerance) {
		panic(fmt.Sprintf("shape outline with %d edges is not closed", len(shape.Edges)))
	}
	if !program.FitsStacks(shape.Program) {
		panic("shape program nests too deeply for the evaluator's stacks")
	}
	s.Shapes = append(s.Shapes, shape)
}

// PlainOver is the default blend mode: source-over composition with the
// normal mix.
var PlainOver = gfx.BlendMode{Mix: gfx.MixNormal, Compose: gfx.ComposeSrcOver}
