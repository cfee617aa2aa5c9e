//go:generate stringer -type=Mix
//go:generate stringer -type=Compose

package gfx

import (
	"fmt"

	"honnef.co/go/aspic/jmath"
)

// The zero values of Mix and Compose are the defaults, normal mixing and
// source-over composition.

// Mix defines the color mixing function of a [BlendMode].
type Mix uint8

const (
	// No blending; the formula selects the source color.
	MixNormal Mix = 0
	// Source color is multiplied by the destination color.
	MixMultiply Mix = 1
	// Multiplies the complements of backdrop and source, then complements
	// the result.
	MixScreen Mix = 2
	// Multiplies or screens, depending on the backdrop color value.
	MixOverlay Mix = 3
	// Selects the darker of backdrop and source.
	MixDarken Mix = 4
	// Selects the lighter of backdrop and source.
	MixLighten Mix = 5
	// Brightens the backdrop to reflect the source. Black produces no
	// change.
	MixColorDodge Mix = 6
	// Darkens the backdrop to reflect the source. White produces no
	// change.
	MixColorBurn Mix = 7
	// Multiplies or screens, depending on the source color value.
	MixHardLight Mix = 8
	// Darkens or lightens, depending on the source color value.
	MixSoftLight Mix = 9
	// Subtracts the darker of the two colors from the lighter.
	MixDifference Mix = 10
	// Like Difference but lower in contrast.
	MixExclusion Mix = 11
	// Hue of the source with saturation and luminosity of the backdrop.
	MixHue Mix = 12
	// Saturation of the source with hue and luminosity of the backdrop.
	MixSaturation Mix = 13
	// Hue and saturation of the source with luminosity of the backdrop.
	MixColor Mix = 14
	// Luminosity of the source with hue and saturation of the backdrop.
	MixLuminosity Mix = 15
)

// Compose defines the layer composition function of a [BlendMode].
type Compose uint8

const (
	// The source is placed over the destination.
	ComposeSrcOver Compose = 0
	// Only the source will be present.
	ComposeCopy Compose = 1
	// Only the destination will be present.
	ComposeDest Compose = 2
	// No regions are enabled.
	ComposeClear Compose = 3
	// The destination is placed over the source.
	ComposeDestOver Compose = 4
	// The parts of the source that overlap with the destination are placed.
	ComposeSrcIn Compose = 5
	// The parts of the destination that overlap with the source are placed.
	ComposeDestIn Compose = 6
	// The parts of the source that fall outside of the destination are placed.
	ComposeSrcOut Compose = 7
	// The parts of the destination that fall outside of the source are placed.
	ComposeDestOut Compose = 8
	// The parts of the source which overlap the destination replace the
	// destination. The destination is placed everywhere else.
	ComposeSrcAtop Compose = 9
	// The parts of the destination which overlap the source replace the
	// source. The source is placed everywhere else.
	ComposeDestAtop Compose = 10
	// The non-overlapping regions of source and destination are combined.
	ComposeXor Compose = 11
	// The sum of the source image and destination image is displayed.
	ComposePlus Compose = 12
	// Cross fade of two elements by complementary opacities.
	ComposePlusLighter Compose = 13
)

// BlendMode combines a [Mix] and a [Compose] function.
type BlendMode struct {
	Mix     Mix
	Compose Compose
}

func (bm BlendMode) String() string {
	return fmt.Sprintf("(%s, %s)", bm.Mix, bm.Compose)
}

// Blend applies bm to a premultiplied source and destination color and
// returns the premultiplied result. Mixing happens on unpremultiplied
// channels per the CSS compositing model; the result is re-premultiplied
// before Porter-Duff composition.
func (bm BlendMode) Blend(src, dst [4]float32) [4]float32 {
	cs := Unpremultiply(src)
	if bm.Mix != MixNormal {
		cb := Unpremultiply(dst)
		mixed := blendMix(bm.Mix, [3]float32{cb[0], cb[1], cb[2]}, [3]float32{cs[0], cs[1], cs[2]})
		// The mixed color only applies where the backdrop exists.
		ab := dst[3]
		for i := range 3 {
			cs[i] = cs[i]*(1-ab) + mixed[i]*ab
		}
	}
	as := src[3]
	premulSrc := [4]float32{cs[0] * as, cs[1] * as, cs[2] * as, as}
	return compose(bm.Compose, premulSrc, dst)
}

func Unpremultiply(c [4]float32) [4]float32 {
	a := c[3]
	if a <= jmath.Epsilon {
		return [4]float32{0, 0, 0, 0}
	}
	inv := 1 / a
	return [4]float32{c[0] * inv, c[1] * inv, c[2] * inv, a}
}

// compose combines premultiplied source and destination using Porter-Duff
// coefficients: out = Fa*src + Fb*dst.
func compose(op Compose, src, dst [4]float32) [4]float32 {
	as := src[3]
	ab := dst[3]
	var fa, fb float32
	switch op {
	case ComposeCopy:
		fa, fb = 1, 0
	case ComposeDest:
		fa, fb = 0, 1
	case ComposeClear:
		fa, fb = 0, 0
	case ComposeSrcOver:
		fa, fb = 1, 1-as
	case ComposeDestOver:
		fa, fb = 1-ab, 1
	case ComposeSrcIn:
		fa, fb = ab, 0
	case ComposeDestIn:
		fa, fb = 0, as
	case ComposeSrcOut:
		fa, fb = 1-ab, 0
	case ComposeDestOut:
		fa, fb = 0, 1-as
	case ComposeSrcAtop:
		fa, fb = ab, 1-as
	case ComposeDestAtop:
		fa, fb = 1-ab, as
	case ComposeXor:
		fa, fb = 1-ab, 1-as
	case ComposePlus, ComposePlusLighter:
		fa, fb = 1, 1
	default:
		panic(fmt.Sprintf("invalid compose op %d", op))
	}
	var out [4]float32
	for i := range 4 {
		out[i] = fa*src[i] + fb*dst[i]
	}
	if op == ComposePlus || op == ComposePlusLighter {
		for i := range 4 {
			out[i] = min(out[i], 1)
		}
	}
	return out
}

func blendMix(mix Mix, cb, cs [3]float32) [3]float32 {
	var out [3]float32
	switch mix {
	case MixMultiply:
		for i := range 3 {
			out[i] = cb[i] * cs[i]
		}
	case MixScreen:
		for i := range 3 {
			out[i] = cb[i] + cs[i] - cb[i]*cs[i]
		}
	case MixOverlay:
		for i := range 3 {
			out[i] = hardLight(cs[i], cb[i])
		}
	case MixDarken:
		for i := range 3 {
			out[i] = min(cb[i], cs[i])
		}
	case MixLighten:
		for i := range 3 {
			out[i] = max(cb[i], cs[i])
		}
	case MixColorDodge:
		for i := range 3 {
			out[i] = colorDodge(cb[i], cs[i])
		}
	case MixColorBurn:
		for i := range 3 {
			out[i] = colorBurn(cb[i], cs[i])
		}
	case MixHardLight:
		for i := range 3 {
			out[i] = hardLight(cb[i], cs[i])
		}
	case MixSoftLight:
		for i := range 3 {
			out[i] = softLight(cb[i], cs[i])
		}
	case MixDifference:
		for i := range 3 {
			out[i] = jmath.Abs32(cb[i] - cs[i])
		}
	case MixExclusion:
		for i := range 3 {
			out[i] = cb[i] + cs[i] - 2*cb[i]*cs[i]
		}
	case MixHue:
		out = setLum(setSat(cs, sat(cb)), lum(cb))
	case MixSaturation:
		out = setLum(setSat(cb, sat(cs)), lum(cb))
	case MixColor:
		out = setLum(cs, lum(cb))
	case MixLuminosity:
		out = setLum(cb, lum(cs))
	default:
		panic(fmt.Sprintf("invalid mix %d", mix))
	}
	return out
}

func hardLight(cb, cs float32) float32 {
	if cs <= 0.5 {
		return cb * 2 * cs
	}
	// screen(cb, 2*cs - 1)
	d := 2*cs - 1
	return cb + d - cb*d
}

func colorDodge(cb, cs float32) float32 {
	if cb == 0 {
		return 0
	}
	if cs >= 1 {
		return 1
	}
	return min(1, cb/(1-cs))
}

func colorBurn(cb, cs float32) float32 {
	if cb >= 1 {
		return 1
	}
	if cs == 0 {
		return 0
	}
	return 1 - min(1, (1-cb)/cs)
}

func softLight(cb, cs float32) float32 {
	if cs <= 0.5 {
		return cb - (1-2*cs)*cb*(1-cb)
	}
	var d float32
	if cb <= 0.25 {
		d = ((16*cb-12)*cb + 4) * cb
	} else {
		d = jmath.Sqrt32(cb)
	}
	return cb + (2*cs-1)*(d-cb)
}

func lum(c [3]float32) float32 {
	return 0.3*c[0] + 0.59*c[1] + 0.11*c[2]
}

func sat(c [3]float32) float32 {
	return max(c[0], c[1], c[2]) - min(c[0], c[1], c[2])
}

func setLum(c [3]float32, l float32) [3]float32 {
	d := l - lum(c)
	for i := range 3 {
		c[i] += d
	}
	return clipColor(c)
}

func setSat(c [3]float32, s float32) [3]float32 {
	cMax := max(c[0], c[1], c[2])
	cMin := min(c[0], c[1], c[2])
	var out [3]float32
	if cMax > cMin {
		for i := range 3 {
			out[i] = (c[i] - cMin) / (cMax - cMin) * s
		}
	}
	return out
}

func clipColor(c [3]float32) [3]float32 {
	l := lum(c)
	n := min(c[0], c[1], c[2])
	x := max(c[0], c[1], c[2])
	if n < 0 {
		for i := range 3 {
			c[i] = l + (c[i]-l)*l/(l-n)
		}
	}
	if x > 1 {
		for i := range 3 {
			c[i] = l + (c[i]-l)*(1-l)/(x-l)
		}
	}
	return c
}
