// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"math"
	"testing"
)

func TestConvertLinearToSRGB(t *testing.T) {
	c := LinearRGBA(0.5, 0.5, 0.5, 0.75).Convert(SpaceSRGB)
	if c.Space != SpaceSRGB {
		t.Fatalf("converted color is in space %d, want %d", c.Space, SpaceSRGB)
	}
	// sRGB encoding of linear 0.5 is 1.055*0.5^(1/2.4) - 0.055.
	const want = 0.7353569830524495
	for i, v := range c.Channel {
		if math.Abs(float64(v)-want) > 1e-4 {
			t.Errorf("channel %d is %v, want %v", i, v, want)
		}
	}
	if c.Alpha != 0.75 {
		t.Errorf("alpha is %v, want 0.75", c.Alpha)
	}
}

func TestConvertSRGBToLinear(t *testing.T) {
	c := RGBA(0.5, 0.5, 0.5, 1).LinearSRGB()
	const want = 0.21404114048223255
	for i, v := range c.Channel {
		if math.Abs(float64(v)-want) > 1e-4 {
			t.Errorf("channel %d is %v, want %v", i, v, want)
		}
	}
}

func TestConvertRoundTrip(t *testing.T) {
	in := RGBA(0.2, 0.5, 0.9, 0.6)
	out := in.Convert(SpaceOklab).Convert(SpaceLinearSRGB).Convert(SpaceSRGB)
	for i := range 3 {
		if math.Abs(float64(out.Channel[i]-in.Channel[i])) > 1e-3 {
			t.Errorf("channel %d is %v, want %v", i, out.Channel[i], in.Channel[i])
		}
	}
	if math.Abs(float64(out.Alpha-in.Alpha)) > 1e-6 {
		t.Errorf("alpha is %v, want %v", out.Alpha, in.Alpha)
	}
}

func TestConvertSameSpace(t *testing.T) {
	in := LinearRGBA(0.1, 0.2, 0.3, 0.4)
	if out := in.Convert(SpaceLinearSRGB); out != in {
		t.Fatalf("got %v, want %v", out, in)
	}
}

func TestPremulUint32(t *testing.T) {
	// The packed bytes stay linear; encoding to sRGB is the render
	// target's business.
	if got, want := LinearRGBA(0.5, 0.5, 0.5, 1).PremulUint32(), uint32(0xff808080); got != want {
		t.Errorf("opaque gray packs to %#08x, want %#08x", got, want)
	}
	if got, want := LinearRGBA(1, 0, 0, 1).PremulUint32(), uint32(0xff0000ff); got != want {
		t.Errorf("red packs to %#08x, want %#08x", got, want)
	}
	if got, want := RGBA(1, 1, 1, 0).PremulUint32(), uint32(0); got != want {
		t.Errorf("transparent packs to %#08x, want %#08x", got, want)
	}
}

func TestPackRGBA8Clamps(t *testing.T) {
	if got, want := PackRGBA8([4]float32{2, -1, 0.5, 1}), uint32(0xff_80_00_ff); got != want {
		t.Fatalf("got %#08x, want %#08x", got, want)
	}
}

func TestLerp(t *testing.T) {
	a := LinearRGBA(0, 0, 0, 0)
	b := LinearRGBA(1, 0.5, 0, 1)
	mid := a.Lerp(b, 0.5)
	want := [3]float32{0.5, 0.25, 0}
	for i := range 3 {
		if math.Abs(float64(mid.Channel[i]-want[i])) > 1e-6 {
			t.Errorf("channel %d is %v, want %v", i, mid.Channel[i], want[i])
		}
	}
	if mid.Alpha != 0.5 {
		t.Errorf("alpha is %v, want 0.5", mid.Alpha)
	}
}

func TestBlendModeString(t *testing.T) {
	m := BlendMode{Mix: MixMultiply, Compose: ComposeSrcOver}
	if got, want := m.String(), "(MixMultiply, ComposeSrcOver)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := MixLuminosity.String(), "MixLuminosity"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := ComposePlusLighter.String(), "ComposePlusLighter"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := Mix(99).String(), "Mix(99)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
