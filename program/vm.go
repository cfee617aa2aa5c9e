// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package program

import (
	"fmt"

	"honnef.co/go/aspic/gfx"
	"honnef.co/go/aspic/jmath"
)

const (
	// StackDepth is the fixed depth of the VM's color stack. Deeply
	// nested trees can exceed it; [FitsStacks] checks a tree against
	// both stacks before it is handed to the compiler.
	StackDepth = 16
	contDepth  = StackDepth
)

// FitsStacks reports whether evaluating a compiled form of n stays
// within the VM's fixed color and continuation stacks.
func FitsStacks(n Node) bool {
	colors, conts := stackNeeds(n)
	return colors <= StackDepth && conts <= contDepth
}

// stackNeeds returns the peak color-stack and continuation-stack depths
// evaluating n can reach.
func stackNeeds(n Node) (colors, conts int) {
	switch n := n.(type) {
	case Solid:
		return 1, 0
	case Blend:
		return ratioNeeds(n.Zero, n.One)
	case FaceSplit:
		return ratioNeeds(n.Outside, n.Inside)
	case Filter:
		return stackNeeds(n.Input)
	case Convert:
		return stackNeeds(n.Input)
	case Layer:
		dc, dk := stackNeeds(n.Dst)
		sc, sk := 1, 0 // a shared arm compiles to a dup
		if n.Src != n.Dst {
			sc, sk = stackNeeds(n.Src)
		}
		return max(dc, 1+sc), max(dk, sk)
	default:
		panic(fmt.Sprintf("unhandled node type %T", n))
	}
}

// ratioNeeds folds the stack needs of a ratio operator's arms: the zero
// arm runs with the blend and one-arm continuations pending, the one arm
// with the zero arm's color and the blend continuation pending, and the
// ratio instruction itself momentarily holds all three continuations.
func ratioNeeds(zero, one Node) (colors, conts int) {
	zc, zk := stackNeeds(zero)
	oc, ok := stackNeeds(one)
	return max(zc, 1+oc), max(3, 2+zk, 1+ok)
}

// VM is the stack machine that evaluates serialized programs. The zero
// value is ready for use; a VM may be reused across pixels and programs
// but not concurrently.
type VM struct {
	stack [StackDepth][4]float32
	sp    int
	// conts holds pending continuation targets; returns pop it.
	conts [contDepth]uint32
	cp    int
	// ratios holds the t values of pending ratio instructions.
	ratios [contDepth]float32
	rp     int
}

// Run executes the program starting at the given word offset of blob and
// returns the resulting color. Programs that do not decode are a fatal
// error and panic; they must never be produced by Compile.
func (vm *VM) Run(blob []uint32, offset uint32, ctx *EvalContext) [4]float32 {
	vm.sp = 0
	vm.cp = 0
	vm.rp = 0
	pc := offset
	for {
		if pc >= uint32(len(blob)) {
			panic(&DecodeError{Word: pc, Msg: "program counter out of range"})
		}
		tag := blob[pc]
		if tag&0xff != tag || tag >= numOpcodes {
			panic(&DecodeError{Word: pc, Msg: fmt.Sprintf("unknown opcode tag %#x", tag)})
		}
		op := Opcode(tag)
		arity := uint32(operandWords[op])
		if pc+1+arity > uint32(len(blob)) {
			panic(&DecodeError{Word: pc, Msg: "truncated instruction"})
		}
		args := blob[pc+1 : pc+1+arity]
		next := pc + 1 + arity

		switch op {
		case OpReturn:
			if vm.cp == 0 {
				if vm.sp != 1 {
					panic(&DecodeError{Word: pc, Msg: fmt.Sprintf("program ended with stack depth %d", vm.sp)})
				}
				return vm.stack[0]
			}
			vm.cp--
			next = vm.conts[vm.cp]

		case OpPushColor:
			vm.push([4]float32{bitsF32(args[0]), bitsF32(args[1]), bitsF32(args[2]), bitsF32(args[3])})

		case OpDup:
			vm.push(vm.peek())

		case OpRatioLinear, OpRatioRadial, OpRatioFace:
			var t float32
			var locs []uint32
			switch op {
			case OpRatioLinear:
				t = linearRatio(args, ctx)
				locs = args[4:]
			case OpRatioRadial:
				t = radialRatio(args, ctx)
				locs = args[4:]
			case OpRatioFace:
				t = jmath.Clamp(ctx.Face, 0, 1)
				locs = args
			}
			vm.pushRatio(t)
			vm.pushCont(locs[2]) // blend
			if t > 0 {
				vm.pushCont(locs[1]) // one arm
			}
			if t < 1 {
				vm.pushCont(locs[0]) // zero arm
			}
			vm.cp--
			next = vm.conts[vm.cp]

		case OpBlendRatio:
			t := vm.popRatio()
			if t > 0 && t < 1 {
				one := vm.pop()
				zero := vm.pop()
				vm.push(lerpColor(zero, one, t))
			}

		case OpFilter:
			var m [16]float32
			var tr [4]float32
			for i := range 16 {
				m[i] = bitsF32(args[i])
			}
			for i := range 4 {
				tr[i] = bitsF32(args[16+i])
			}
			vm.push(applyMatrix(&m, &tr, vm.pop()))

		case OpConvert:
			vm.push(convertColor(gfx.Space(args[0]), vm.pop()))

		case OpCompose:
			mode := gfx.BlendMode{Mix: gfx.Mix(args[0]), Compose: gfx.Compose(args[1])}
			src := vm.pop()
			dst := vm.pop()
			vm.push(composeColors(mode, src, dst))
		}

		pc = next
	}
}

func linearRatio(args []uint32, ctx *EvalContext) float32 {
	x0, y0 := bitsF32(args[0]), bitsF32(args[1])
	x1, y1 := bitsF32(args[2]), bitsF32(args[3])
	dx, dy := x1-x0, y1-y0
	denom := dx*dx + dy*dy
	if denom <= jmath.Epsilon {
		return 0
	}
	px, py := ctx.Pos[0]-x0, ctx.Pos[1]-y0
	return jmath.Clamp((px*dx+py*dy)/denom, 0, 1)
}

func radialRatio(args []uint32, ctx *EvalContext) float32 {
	cx, cy := bitsF32(args[0]), bitsF32(args[1])
	r0, r1 := bitsF32(args[2]), bitsF32(args[3])
	denom := r1 - r0
	if jmath.Abs32(denom) <= jmath.Epsilon {
		return 0
	}
	px, py := ctx.Pos[0]-cx, ctx.Pos[1]-cy
	d := jmath.Sqrt32(px*px + py*py)
	return jmath.Clamp((d-r0)/denom, 0, 1)
}

func (vm *VM) push(c [4]float32) {
	if vm.sp == StackDepth {
		panic("color stack overflow")
	}
	vm.stack[vm.sp] = c
	vm.sp++
}

func (vm *VM) pop() [4]float32 {
	if vm.sp == 0 {
		panic("color stack underflow")
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek() [4]float32 {
	if vm.sp == 0 {
		panic("color stack underflow")
	}
	return vm.stack[vm.sp-1]
}

func (vm *VM) pushCont(target uint32) {
	if vm.cp == contDepth {
		panic("continuation stack overflow")
	}
	vm.conts[vm.cp] = target
	vm.cp++
}

func (vm *VM) pushRatio(t float32) {
	if vm.rp == contDepth {
		panic("ratio stack overflow")
	}
	vm.ratios[vm.rp] = t
	vm.rp++
}

func (vm *VM) popRatio() float32 {
	if vm.rp == 0 {
		panic("ratio stack underflow")
	}
	vm.rp--
	return vm.ratios[vm.rp]
}
