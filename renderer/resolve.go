// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"math"

	"honnef.co/go/aspic/program"
)

// Resolved is a scene lowered into the flat buffers the kernels consume.
type Resolved struct {
	Shapes   []ShapeRecord
	Edges    []EdgeRecord
	Programs []uint32
}

// Resolver lowers scenes. It holds the program simplifier so interned
// nodes persist across frames; a Resolver must not be used concurrently.
type Resolver struct {
	simplifier *program.Simplifier
}

func NewResolver() *Resolver {
	return &Resolver{simplifier: program.NewSimplifier()}
}

// Resolve simplifies and compiles each shape's program, serializes all
// programs into one shared blob, converts outlines to edge records, and
// derives the per-shape flags and bounds.
//
// Shapes that cannot contribute, such as fully transparent programs under
// plain source-over, are dropped here so the kernels never see them.
func (r *Resolver) Resolve(scene *Scene, params *RenderParams) *Resolved {
	out := &Resolved{}
	for i := range scene.Shapes {
		shape := &scene.Shapes[i]
		node := r.simplifier.Simplify(shape.Program)
		if node.IsTransparent() && shape.Mode == PlainOver {
			continue
		}

		var bits uint32
		if node.NeedsCentroid() {
			bits |= FlagNeedsCentroid
		}
		if node.NeedsFace() {
			bits |= FlagNeedsFace
		}
		if _, ok := node.(program.Solid); ok {
			bits |= FlagConstant
		}
		if shape.FullArea {
			bits |= FlagFullArea
		}

		var offset uint32
		out.Programs, offset = program.Compile(node).Append(out.Programs)

		rec := ShapeRecord{
			ProgramOffset: offset,
			Flags:         PackFlags(bits, shape.Mode),
			EdgeIdx:       uint32(len(out.Edges)),
			EdgeCount:     uint32(len(shape.Edges)),
			Bbox:          shapeBounds(shape, params),
		}
		for _, e := range shape.Edges {
			var flags uint32
			if e.FakeCorner {
				flags |= EdgeFlagFakeCorner
			}
			out.Edges = append(out.Edges, EdgeRecord{
				X0:    float32(e.P0.X),
				Y0:    float32(e.P0.Y),
				X1:    float32(e.P1.X),
				Y1:    float32(e.P1.Y),
				Flags: flags,
			})
		}
		out.Shapes = append(out.Shapes, rec)
	}
	return out
}

// shapeBounds returns the shape's outline bounds in raster pixels. Fake
// corner edges run along earlier clip boundaries, not the outline, so
// they are excluded; a shape with no outline covers the whole target.
func shapeBounds(shape *Shape, params *RenderParams) [4]float32 {
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for _, e := range shape.Edges {
		if e.FakeCorner {
			continue
		}
		x0 = min(x0, e.P0.X, e.P1.X)
		y0 = min(y0, e.P0.Y, e.P1.Y)
		x1 = max(x1, e.P0.X, e.P1.X)
		y1 = max(y1, e.P0.Y, e.P1.Y)
	}
	if x0 > x1 {
		return [4]float32{0, 0, float32(params.Width), float32(params.Height)}
	}
	return [4]float32{float32(x0), float32(y0), float32(x1), float32(y1)}
}
