// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package aspic

import (
	"honnef.co/go/aspic/gfx"
	"honnef.co/go/aspic/program"
	"honnef.co/go/aspic/renderer"
	"honnef.co/go/curve"
)

// Scene builds a renderer scene from curve shapes. The zero value is an
// empty scene.
type Scene struct {
	renderer.Scene
}

// Fill paints the shape with the given program, composited source-over.
// The shape's outline must be positively wound; negatively wound regions
// have no coverage.
func (s *Scene) Fill(shape curve.Shape, prog program.Node) {
	s.FillBlended(shape, prog, renderer.PlainOver)
}

// FillBlended paints the shape with the given program and blend mode.
func (s *Scene) FillBlended(shape curve.Shape, prog program.Node, mode gfx.BlendMode) {
	s.Append(renderer.Shape{
		Edges:   FlattenShape(shape, FlattenTolerance),
		Program: prog,
		Mode:    mode,
	})
}

// FillAll paints the whole target with the given program.
func (s *Scene) FillAll(prog program.Node, mode gfx.BlendMode) {
	s.Append(renderer.Shape{
		Program:  prog,
		Mode:     mode,
		FullArea: true,
	})
}
