// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package program models shading programs as immutable trees, compiles
// them to a flat, relocatable bytecode, and evaluates that bytecode with a
// small stack machine, once per covered pixel.
package program

import (
	"honnef.co/go/aspic/gfx"
	"honnef.co/go/aspic/jmath"
	"honnef.co/go/curve"
)

// EvalContext carries the per-pixel inputs a program may read. Centroid
// and Face are only populated when the face record's flags request them.
type EvalContext struct {
	// Pos is the sample position in raster coordinates.
	Pos [2]float32
	// Centroid of the covered region, when the program needs it.
	Centroid    [2]float32
	HasCentroid bool
	// Face is the winding-derived face value at the sample.
	Face    float32
	HasFace bool
}

// Node is one operator of a shading-program tree. The set of
// implementations is closed; colors flow through evaluation as
// unpremultiplied linear sRGB.
type Node interface {
	isNode()

	// IsTransparent reports whether the node evaluates to a fully
	// transparent color everywhere.
	IsTransparent() bool
	// IsOpaque reports whether the node evaluates to a fully opaque color
	// everywhere.
	IsOpaque() bool
	// NeedsCentroid reports whether evaluation reads the covered-region
	// centroid.
	NeedsCentroid() bool
	// NeedsFace reports whether evaluation reads face-level winding data.
	NeedsFace() bool

	// Eval evaluates the tree directly. It is the reference semantics the
	// compiled bytecode must reproduce.
	Eval(ctx *EvalContext) [4]float32
}

// Solid is a constant color.
type Solid struct {
	Color gfx.Color
}

func (Solid) isNode() {}

func (n Solid) IsTransparent() bool { return n.Color.Alpha == 0 }
func (n Solid) IsOpaque() bool      { return n.Color.Alpha >= 1 }
func (Solid) NeedsCentroid() bool   { return false }
func (Solid) NeedsFace() bool       { return false }

func (n Solid) Eval(ctx *EvalContext) [4]float32 {
	c := n.Color.LinearSRGB()
	return [4]float32{c.Channel[0], c.Channel[1], c.Channel[2], c.Alpha}
}

// Transparent is the canonical fully transparent constant.
var Transparent = Solid{Color: gfx.LinearRGBA(0, 0, 0, 0)}

// BlendKind selects how a Blend computes its ratio from the sample
// position.
type BlendKind uint8

const (
	BlendLinear BlendKind = iota
	BlendRadial
)

// Blend interpolates between its Zero and One arms with a ratio derived
// from the sample position: the projection onto the Start-End axis for
// BlendLinear, the normalized distance between two radii around Start for
// BlendRadial. Arms are only evaluated on the side of the gradient where
// they can contribute.
type Blend struct {
	Kind       BlendKind
	Start, End curve.Point
	// Radii for BlendRadial; End is unused there.
	Radius0, Radius1 float32
	Zero, One        Node
}

func (Blend) isNode() {}

func (n Blend) IsTransparent() bool { return n.Zero.IsTransparent() && n.One.IsTransparent() }
func (n Blend) IsOpaque() bool      { return n.Zero.IsOpaque() && n.One.IsOpaque() }
func (n Blend) NeedsCentroid() bool { return n.Zero.NeedsCentroid() || n.One.NeedsCentroid() }
func (n Blend) NeedsFace() bool     { return n.Zero.NeedsFace() || n.One.NeedsFace() }

func (n Blend) ratio(ctx *EvalContext) float32 {
	px := ctx.Pos[0] - float32(n.Start.X)
	py := ctx.Pos[1] - float32(n.Start.Y)
	switch n.Kind {
	case BlendLinear:
		dx := float32(n.End.X - n.Start.X)
		dy := float32(n.End.Y - n.Start.Y)
		denom := dx*dx + dy*dy
		if denom <= jmath.Epsilon {
			return 0
		}
		return jmath.Clamp((px*dx+py*dy)/denom, 0, 1)
	case BlendRadial:
		denom := n.Radius1 - n.Radius0
		if jmath.Abs32(denom) <= jmath.Epsilon {
			return 0
		}
		d := jmath.Sqrt32(px*px + py*py)
		return jmath.Clamp((d-n.Radius0)/denom, 0, 1)
	default:
		panic("unreachable")
	}
}

func (n Blend) Eval(ctx *EvalContext) [4]float32 {
	t := n.ratio(ctx)
	if t <= 0 {
		return n.Zero.Eval(ctx)
	}
	if t >= 1 {
		return n.One.Eval(ctx)
	}
	return lerpColor(n.Zero.Eval(ctx), n.One.Eval(ctx), t)
}

// FaceSplit selects between two arms using per-face winding data: the
// Inside arm where the face value is one, the Outside arm where it is
// zero, interpolating across partial values. It is the path-boolean
// split operator.
type FaceSplit struct {
	Outside, Inside Node
}

func (FaceSplit) isNode() {}

func (n FaceSplit) IsTransparent() bool { return n.Outside.IsTransparent() && n.Inside.IsTransparent() }
func (n FaceSplit) IsOpaque() bool      { return n.Outside.IsOpaque() && n.Inside.IsOpaque() }
func (n FaceSplit) NeedsCentroid() bool { return n.Outside.NeedsCentroid() || n.Inside.NeedsCentroid() }
func (FaceSplit) NeedsFace() bool       { return true }

func (n FaceSplit) Eval(ctx *EvalContext) [4]float32 {
	t := jmath.Clamp(ctx.Face, 0, 1)
	if t <= 0 {
		return n.Outside.Eval(ctx)
	}
	if t >= 1 {
		return n.Inside.Eval(ctx)
	}
	return lerpColor(n.Outside.Eval(ctx), n.Inside.Eval(ctx), t)
}

// Filter transforms its input color by a 4×4 color matrix plus a
// translation, clamping the result to the unit range.
type Filter struct {
	// Matrix is row-major; row i produces output channel i from the
	// RGBA input.
	Matrix      [16]float32
	Translation [4]float32
	Input       Node
}

func (Filter) isNode() {}

func (Filter) IsTransparent() bool   { return false }
func (Filter) IsOpaque() bool        { return false }
func (n Filter) NeedsCentroid() bool { return n.Input.NeedsCentroid() }
func (n Filter) NeedsFace() bool     { return n.Input.NeedsFace() }

func (n Filter) Eval(ctx *EvalContext) [4]float32 {
	return applyMatrix(&n.Matrix, &n.Translation, n.Input.Eval(ctx))
}

func applyMatrix(m *[16]float32, t *[4]float32, c [4]float32) [4]float32 {
	var out [4]float32
	for i := range 4 {
		v := t[i]
		for j := range 4 {
			v += m[i*4+j] * c[j]
		}
		out[i] = jmath.Clamp(v, 0, 1)
	}
	return out
}

// Convert declares that its subtree's channel values are expressed in the
// given color space and converts the result into the linear sRGB working
// space.
type Convert struct {
	Space gfx.Space
	Input Node
}

func (Convert) isNode() {}

func (n Convert) IsTransparent() bool { return n.Input.IsTransparent() }
func (Convert) IsOpaque() bool        { return false }
func (n Convert) NeedsCentroid() bool { return n.Input.NeedsCentroid() }
func (n Convert) NeedsFace() bool     { return n.Input.NeedsFace() }

func (n Convert) Eval(ctx *EvalContext) [4]float32 {
	return convertColor(n.Space, n.Input.Eval(ctx))
}

func convertColor(space gfx.Space, c [4]float32) [4]float32 {
	cc := gfx.Color{
		Space:   space,
		Channel: [3]float32{c[0], c[1], c[2]},
		Alpha:   c[3],
	}.LinearSRGB()
	return [4]float32{cc.Channel[0], cc.Channel[1], cc.Channel[2], cc.Alpha}
}

// Layer composes its Src arm onto its Dst arm with a compose operator and
// an optional non-default mix, the stack/compose-blend operator.
type Layer struct {
	Mode     gfx.BlendMode
	Dst, Src Node
}

func (Layer) isNode() {}

func (n Layer) IsTransparent() bool {
	if n.Mode.Compose == gfx.ComposeClear {
		return true
	}
	return n.Src.IsTransparent() && n.Dst.IsTransparent()
}

func (n Layer) IsOpaque() bool {
	return n.Mode.Compose == gfx.ComposeSrcOver && (n.Src.IsOpaque() || n.Dst.IsOpaque())
}

func (n Layer) NeedsCentroid() bool { return n.Src.NeedsCentroid() || n.Dst.NeedsCentroid() }
func (n Layer) NeedsFace() bool     { return n.Src.NeedsFace() || n.Dst.NeedsFace() }

func (n Layer) Eval(ctx *EvalContext) [4]float32 {
	return composeColors(n.Mode, n.Src.Eval(ctx), n.Dst.Eval(ctx))
}

func composeColors(mode gfx.BlendMode, src, dst [4]float32) [4]float32 {
	out := mode.Blend(premultiply(src), premultiply(dst))
	return gfx.Unpremultiply(out)
}

func premultiply(c [4]float32) [4]float32 {
	return [4]float32{c[0] * c[3], c[1] * c[3], c[2] * c[3], c[3]}
}

func lerpColor(c0, c1 [4]float32, t float32) [4]float32 {
	var out [4]float32
	for i := range 4 {
		out[i] = c0[i] + (c1[i]-c0[i])*t
	}
	return out
}
