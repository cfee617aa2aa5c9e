// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package program

import (
	"slices"
	"testing"

	"honnef.co/go/aspic/gfx"
	"honnef.co/go/curve"
)

func red() Solid   { return Solid{Color: gfx.LinearRGBA(1, 0, 0, 1)} }
func green() Solid { return Solid{Color: gfx.LinearRGBA(0, 1, 0, 1)} }
func blue() Solid  { return Solid{Color: gfx.LinearRGBA(0, 0, 1, 0.5)} }

func linearBlend(zero, one Node) Blend {
	return Blend{
		Kind:  BlendLinear,
		Start: curve.Point{X: 0, Y: 0},
		End:   curve.Point{X: 8, Y: 0},
		Zero:  zero,
		One:   one,
	}
}

func testNodes() map[string]Node {
	grayscale := Filter{
		Matrix: [16]float32{
			0.2126, 0.7152, 0.0722, 0,
			0.2126, 0.7152, 0.0722, 0,
			0.2126, 0.7152, 0.0722, 0,
			0, 0, 0, 1,
		},
		Input: linearBlend(red(), green()),
	}
	return map[string]Node{
		"solid": red(),
		"linear": linearBlend(red(), green()),
		"radial": Blend{
			Kind:    BlendRadial,
			Start:   curve.Point{X: 4, Y: 4},
			Radius0: 1,
			Radius1: 6,
			Zero:    red(),
			One:     blue(),
		},
		"nested": linearBlend(
			Blend{
				Kind:    BlendRadial,
				Start:   curve.Point{X: 2, Y: 2},
				Radius0: 0,
				Radius1: 4,
				Zero:    green(),
				One:     blue(),
			},
			red(),
		),
		"faceSplit": FaceSplit{Outside: Transparent, Inside: red()},
		"filter":    grayscale,
		"convert": Convert{
			Space: gfx.SpaceOklab,
			Input: Solid{Color: gfx.LinearRGBA(0.7, 0.1, 0.2, 1)},
		},
		"layer": Layer{
			Mode: gfx.BlendMode{Mix: gfx.MixMultiply, Compose: gfx.ComposeSrcOver},
			Dst:  red(),
			Src:  blue(),
		},
		"layerSharedArm": Layer{
			Mode: gfx.BlendMode{Mix: gfx.MixNormal, Compose: gfx.ComposePlus},
			Dst:  blue(),
			Src:  blue(),
		},
	}
}

func TestCompileLinearBlendLayout(t *testing.T) {
	words := Compile(linearBlend(red(), green())).Words()
	// Main flow, then the out-of-line arm blocks: the ratio instruction
	// carries the arm offsets and the offset of the blend join.
	want := []uint32{
		uint32(OpRatioLinear), f32Bits(0), f32Bits(0), f32Bits(8), f32Bits(0), 10, 16, 8,
		uint32(OpBlendRatio),
		uint32(OpReturn),
		uint32(OpPushColor), f32Bits(1), f32Bits(0), f32Bits(0), f32Bits(1),
		uint32(OpReturn),
		uint32(OpPushColor), f32Bits(0), f32Bits(1), f32Bits(0), f32Bits(1),
		uint32(OpReturn),
	}
	if !slices.Equal(words, want) {
		t.Errorf("got words\n%v, want\n%v", words, want)
	}
}

func TestCompileRoundTrip(t *testing.T) {
	for name, node := range testNodes() {
		t.Run(name, func(t *testing.T) {
			words := Compile(node).Words()
			insts, err := Decode(words)
			if err != nil {
				t.Fatalf("decode failed: %s", err)
			}
			if insts[len(insts)-1].Op != OpReturn {
				t.Errorf("program does not end in a return")
			}
			// Re-encoding the decoded instructions must reproduce the
			// serialized form word for word.
			var reenc []uint32
			for _, inst := range insts {
				reenc = append(reenc, uint32(inst.Op))
				reenc = append(reenc, inst.Args...)
			}
			if !slices.Equal(reenc, words) {
				t.Errorf("re-encoded words\n%v, want\n%v", reenc, words)
			}
		})
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	words := []uint32{uint32(numOpcodes), 0, 0}
	if _, err := Decode(words); err == nil {
		t.Fatal("expected decode error for unknown opcode")
	}
	words = []uint32{0xffff0000}
	if _, err := Decode(words); err == nil {
		t.Fatal("expected decode error for tag with high bits set")
	}
}

func TestDecodeRejectsTruncation(t *testing.T) {
	words := Compile(red()).Words()
	// Cut inside the push's operand words: the instruction header survives
	// with too few operand words behind it.
	if _, err := Decode(words[:len(words)-2]); err == nil {
		t.Fatal("expected decode error for a program cut inside an instruction")
	}
	if _, err := Decode(words[:1]); err == nil {
		t.Fatal("expected decode error for a lone opcode word")
	}
}

func TestFitsStacks(t *testing.T) {
	if !FitsStacks(red()) {
		t.Error("a solid should fit")
	}

	// Layers nested through Src hold one extra color per level.
	deep := Node(red())
	for range StackDepth {
		deep = Layer{Dst: red(), Src: deep}
	}
	if FitsStacks(deep) {
		t.Error("a src-nested layer chain deeper than the color stack should not fit")
	}

	// Nesting through Dst reuses the same slot and stays shallow.
	wide := Node(red())
	for range 4 * StackDepth {
		wide = Layer{Dst: wide, Src: red()}
	}
	if !FitsStacks(wide) {
		t.Error("a dst-nested layer chain should fit at any depth")
	}

	// Blends nested through the zero arm hold two pending continuations
	// per level.
	nested := Node(red())
	for range StackDepth/2 + 1 {
		nested = linearBlend(nested, green())
	}
	if FitsStacks(nested) {
		t.Error("blends nested past the continuation stack should not fit")
	}
}

func TestVMDeepDstLayers(t *testing.T) {
	wide := Node(red())
	for range 4 * StackDepth {
		wide = Layer{Dst: wide, Src: blue()}
	}
	if !FitsStacks(wide) {
		t.Fatal("a dst-nested layer chain should fit")
	}
	blob, offset := Compile(wide).Append(nil)
	var vm VM
	ctx := EvalContext{Pos: [2]float32{3.5, 3.5}}
	got := vm.Run(blob, offset, &ctx)
	want := wide.Eval(&ctx)
	if !colorsClose(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func colorsClose(a, b [4]float32) bool {
	for i := range 4 {
		d := a[i] - b[i]
		if d < -1e-5 || d > 1e-5 {
			return false
		}
	}
	return true
}

func TestVMMatchesEval(t *testing.T) {
	for name, node := range testNodes() {
		t.Run(name, func(t *testing.T) {
			blob, offset := Compile(node).Append(nil)
			var vm VM
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					ctx := EvalContext{
						Pos:     [2]float32{float32(x) + 0.5, float32(y) + 0.5},
						Face:    float32(x) / 7,
						HasFace: true,
					}
					want := node.Eval(&ctx)
					got := vm.Run(blob, offset, &ctx)
					if !colorsClose(got, want) {
						t.Fatalf("at (%d,%d): got %v, want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestVMSharedBlob(t *testing.T) {
	a := Compile(red())
	b := Compile(linearBlend(red(), green()))
	blob, offA := a.Append(nil)
	blob, offB := b.Append(blob)
	if offB == 0 {
		t.Fatal("second program should not start at the blob's first word")
	}
	var vm VM
	ctx := EvalContext{Pos: [2]float32{4, 0}}
	if got, want := vm.Run(blob, offA, &ctx), red().Eval(&ctx); !colorsClose(got, want) {
		t.Errorf("first program: got %v, want %v", got, want)
	}
	if got, want := vm.Run(blob, offB, &ctx), linearBlend(red(), green()).Eval(&ctx); !colorsClose(got, want) {
		t.Errorf("second program: got %v, want %v", got, want)
	}
}

func TestSimplifyTransparentCollapse(t *testing.T) {
	s := NewSimplifier()
	n := linearBlend(
		Solid{Color: gfx.LinearRGBA(1, 0, 0, 0)},
		FaceSplit{Outside: Transparent, Inside: Solid{Color: gfx.RGBA(0, 0.5, 0, 0)}},
	)
	if got := s.Simplify(n); got != Node(Transparent) {
		t.Errorf("got %#v, want the transparent constant", got)
	}
}

func TestSimplifyConstantFold(t *testing.T) {
	s := NewSimplifier()
	n := Filter{
		Matrix: [16]float32{
			0, 1, 0, 0,
			1, 0, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
		Input: red(),
	}
	got, ok := s.Simplify(n).(Solid)
	if !ok {
		t.Fatalf("got %#v, want a solid", got)
	}
	want := [4]float32{0, 1, 0, 1}
	c := got.Eval(nil)
	if !colorsClose(c, want) {
		t.Errorf("got %v, want %v", c, want)
	}
}

func TestSimplifyEqualArms(t *testing.T) {
	s := NewSimplifier()
	n := linearBlend(red(), red())
	if _, ok := s.Simplify(n).(Solid); !ok {
		t.Errorf("blend of equal arms should collapse to the arm")
	}
}

func TestSimplifyDegenerateGradient(t *testing.T) {
	s := NewSimplifier()
	n := Blend{Kind: BlendLinear, Start: curve.Point{X: 3, Y: 3}, End: curve.Point{X: 3, Y: 3}, Zero: red(), One: green()}
	got, ok := s.Simplify(n).(Solid)
	if !ok {
		t.Fatalf("degenerate gradient should collapse to its zero arm")
	}
	if !colorsClose(got.Eval(nil), red().Eval(nil)) {
		t.Errorf("got %v, want the zero arm", got.Eval(nil))
	}
}

func TestSimplifyHoistsSplit(t *testing.T) {
	s := NewSimplifier()
	n := Filter{
		Matrix: [16]float32{
			0.5, 0, 0, 0,
			0, 0.5, 0, 0,
			0, 0, 0.5, 0,
			0, 0, 0, 1,
		},
		Input: FaceSplit{
			Outside: red(),
			Inside:  linearBlend(red(), green()),
		},
	}
	got, ok := s.Simplify(n).(FaceSplit)
	if !ok {
		t.Fatalf("filter over a split with a constant arm should hoist the split")
	}
	if _, ok := got.Outside.(Solid); !ok {
		t.Errorf("hoisted constant arm should fold to a solid, got %#v", got.Outside)
	}
	if _, ok := got.Inside.(Filter); !ok {
		t.Errorf("hoisted varying arm should stay filtered, got %#v", got.Inside)
	}
}

func TestSimplifyPlainOver(t *testing.T) {
	s := NewSimplifier()
	over := gfx.BlendMode{Mix: gfx.MixNormal, Compose: gfx.ComposeSrcOver}
	varying := Node(linearBlend(red(), green()))
	if got := s.Simplify(Layer{Mode: over, Dst: varying, Src: Transparent}); got != s.Simplify(varying) {
		t.Errorf("transparent source over should reduce to the destination")
	}
	if got := s.Simplify(Layer{Mode: over, Dst: varying, Src: red()}); got != Node(s.intern(red())) {
		t.Errorf("opaque source over should reduce to the source, got %#v", got)
	}
}

func TestSimplifyInterning(t *testing.T) {
	s := NewSimplifier()
	a := s.Simplify(linearBlend(red(), green()))
	b := s.Simplify(linearBlend(red(), green()))
	if a != b {
		t.Errorf("equal trees should simplify to the same interned node")
	}
}

func TestVMEquivalenceAfterSimplify(t *testing.T) {
	s := NewSimplifier()
	for name, node := range testNodes() {
		t.Run(name, func(t *testing.T) {
			simp := s.Simplify(node)
			blob, offset := Compile(simp).Append(nil)
			var vm VM
			for x := 0; x < 8; x++ {
				ctx := EvalContext{
					Pos:     [2]float32{float32(x) + 0.5, 3.5},
					Face:    float32(x) / 7,
					HasFace: true,
				}
				want := node.Eval(&ctx)
				got := vm.Run(blob, offset, &ctx)
				if !colorsClose(got, want) {
					t.Fatalf("at x=%d: got %v, want %v", x, got, want)
				}
			}
		})
	}
}
