// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"honnef.co/go/aspic/jmath"
	"honnef.co/go/color"
)

// Space identifies one of the color spaces that shading programs and the
// render target can work in. The numeric values are part of the compiled
// program encoding.
type Space uint32

const (
	SpaceLinearSRGB Space = 0
	SpaceSRGB       Space = 1
	SpaceOklab      Space = 2
)

func (s Space) colorSpace() *color.Space {
	switch s {
	case SpaceLinearSRGB:
		return color.LinearSRGB
	case SpaceSRGB:
		return color.SRGB
	case SpaceOklab:
		return color.Oklab
	default:
		panic("unreachable")
	}
}

// Color is an unpremultiplied color with explicitly tracked space. The
// kernels work in linear sRGB; Convert bridges to other spaces through
// honnef.co/go/color.
type Color struct {
	Space   Space
	Channel [3]float32
	Alpha   float32
}

func RGBA(r, g, b, a float32) Color {
	return Color{Space: SpaceSRGB, Channel: [3]float32{r, g, b}, Alpha: a}
}

func LinearRGBA(r, g, b, a float32) Color {
	return Color{Space: SpaceLinearSRGB, Channel: [3]float32{r, g, b}, Alpha: a}
}

func (c Color) Convert(space Space) Color {
	if c.Space == space {
		return c
	}
	cc := color.Make(
		c.Space.colorSpace(),
		float64(c.Channel[0]),
		float64(c.Channel[1]),
		float64(c.Channel[2]),
		float64(c.Alpha),
	)
	out := cc.Convert(space.colorSpace())
	return Color{
		Space: space,
		Channel: [3]float32{
			float32(out.Values[0]),
			float32(out.Values[1]),
			float32(out.Values[2]),
		},
		Alpha: float32(out.Values[3]),
	}
}

func (c Color) LinearSRGB() Color {
	return c.Convert(SpaceLinearSRGB)
}

func (c Color) WithAlphaFactor(alpha float32) Color {
	c.Alpha *= alpha
	return c
}

// Lerp interpolates between c and other in c's color space.
func (c Color) Lerp(other Color, t float32) Color {
	o := other.Convert(c.Space)
	out := c
	for i := range 3 {
		out.Channel[i] = c.Channel[i] + (o.Channel[i]-c.Channel[i])*t
	}
	out.Alpha = c.Alpha + (o.Alpha-c.Alpha)*t
	return out
}

// Premul32 returns the color as premultiplied linear sRGB components.
func (c Color) Premul32() [4]float32 {
	cc := c.LinearSRGB()
	return [4]float32{
		cc.Channel[0] * cc.Alpha,
		cc.Channel[1] * cc.Alpha,
		cc.Channel[2] * cc.Alpha,
		cc.Alpha,
	}
}

// PremulUint32 packs the premultiplied color as 8-bit RGBA, R in the low
// byte, matching the output image format.
func (c Color) PremulUint32() uint32 {
	return PackRGBA8(c.Premul32())
}

func PackRGBA8(premul [4]float32) uint32 {
	pack := func(f float32) uint32 {
		return uint32(jmath.Clamp(f, 0, 1)*255 + 0.5)
	}
	return pack(premul[0]) | pack(premul[1])<<8 | pack(premul[2])<<16 | pack(premul[3])<<24
}
