// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package program

import (
	"honnef.co/go/aspic/gfx"
)

// Simplifier rewrites program trees into smaller equivalent ones before
// compilation. Nodes are interned as they are produced, so equal subtrees
// end up as the same value and rewrites can compare children with ==.
// A Simplifier may be reused across trees; it must not be used
// concurrently.
type Simplifier struct {
	nodes map[Node]Node
}

func NewSimplifier() *Simplifier {
	return &Simplifier{nodes: make(map[Node]Node)}
}

func (s *Simplifier) intern(n Node) Node {
	if m, ok := s.nodes[n]; ok {
		return m
	}
	s.nodes[n] = n
	return n
}

// Simplify returns a node that evaluates to the same color as n at every
// sample. It folds constants, collapses fully transparent subtrees, drops
// degenerate gradients, and hoists face splits above unary operators when
// one of the split's arms is constant.
func (s *Simplifier) Simplify(n Node) Node {
	switch n := n.(type) {
	case Solid:
		if n.IsTransparent() {
			return s.intern(Transparent)
		}
		return s.intern(n)

	case Blend:
		zero := s.Simplify(n.Zero)
		one := s.Simplify(n.One)
		if zero == one {
			return zero
		}
		if s.degenerateAxis(n) {
			return zero
		}
		out := Blend{
			Kind:    n.Kind,
			Start:   n.Start,
			End:     n.End,
			Radius0: n.Radius0,
			Radius1: n.Radius1,
			Zero:    zero,
			One:     one,
		}
		if out.IsTransparent() {
			return s.intern(Transparent)
		}
		return s.intern(out)

	case FaceSplit:
		outside := s.Simplify(n.Outside)
		inside := s.Simplify(n.Inside)
		if outside == inside {
			return outside
		}
		out := FaceSplit{Outside: outside, Inside: inside}
		if out.IsTransparent() {
			return s.intern(Transparent)
		}
		return s.intern(out)

	case Filter:
		input := s.Simplify(n.Input)
		if sol, ok := input.(Solid); ok {
			return s.foldSolid(Filter{Matrix: n.Matrix, Translation: n.Translation, Input: sol})
		}
		if n.Matrix == identityMatrix && n.Translation == [4]float32{} {
			return input
		}
		if split, ok := splitWithConstantArm(input); ok {
			return s.Simplify(FaceSplit{
				Outside: Filter{Matrix: n.Matrix, Translation: n.Translation, Input: split.Outside},
				Inside:  Filter{Matrix: n.Matrix, Translation: n.Translation, Input: split.Inside},
			})
		}
		return s.intern(Filter{Matrix: n.Matrix, Translation: n.Translation, Input: input})

	case Convert:
		input := s.Simplify(n.Input)
		if n.Space == gfx.SpaceLinearSRGB {
			return input
		}
		if sol, ok := input.(Solid); ok {
			return s.foldSolid(Convert{Space: n.Space, Input: sol})
		}
		if split, ok := splitWithConstantArm(input); ok {
			return s.Simplify(FaceSplit{
				Outside: Convert{Space: n.Space, Input: split.Outside},
				Inside:  Convert{Space: n.Space, Input: split.Inside},
			})
		}
		return s.intern(Convert{Space: n.Space, Input: input})

	case Layer:
		dst := s.Simplify(n.Dst)
		src := s.Simplify(n.Src)
		plain := n.Mode == gfx.BlendMode{Mix: gfx.MixNormal, Compose: gfx.ComposeSrcOver}
		if plain {
			if src.IsTransparent() {
				return dst
			}
			if dst.IsTransparent() || src.IsOpaque() {
				return src
			}
		}
		dsol, dok := dst.(Solid)
		ssol, sok := src.(Solid)
		if dok && sok {
			return s.foldSolid(Layer{Mode: n.Mode, Dst: dsol, Src: ssol})
		}
		out := Layer{Mode: n.Mode, Dst: dst, Src: src}
		if out.IsTransparent() {
			return s.intern(Transparent)
		}
		return s.intern(out)

	default:
		panic("unreachable")
	}
}

// degenerateAxis reports whether the blend's ratio is zero at every
// sample, which happens when the gradient geometry has no extent.
func (s *Simplifier) degenerateAxis(n Blend) bool {
	switch n.Kind {
	case BlendLinear:
		return n.Start == n.End
	case BlendRadial:
		return n.Radius0 == n.Radius1
	default:
		panic("unreachable")
	}
}

// foldSolid evaluates a position-independent node once and replaces it
// with the resulting constant.
func (s *Simplifier) foldSolid(n Node) Node {
	col := n.Eval(&EvalContext{})
	return s.Simplify(Solid{Color: gfx.LinearRGBA(col[0], col[1], col[2], col[3])})
}

// splitWithConstantArm matches a face split where at least one arm is a
// constant, the shape worth hoisting unary operators into.
func splitWithConstantArm(n Node) (FaceSplit, bool) {
	split, ok := n.(FaceSplit)
	if !ok {
		return FaceSplit{}, false
	}
	if _, ok := split.Outside.(Solid); ok {
		return split, true
	}
	if _, ok := split.Inside.(Solid); ok {
		return split, true
	}
	return FaceSplit{}, false
}

var identityMatrix = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}
