// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package program

import (
	"fmt"
	"math"
)

// Opcode tags one instruction of a compiled program. It occupies the low
// byte of the instruction's first 32-bit word; the remaining bits are
// reserved and zero.
type Opcode uint8

const (
	// OpReturn pops the continuation stack and transfers control there;
	// with an empty continuation stack it ends the program.
	OpReturn Opcode = 0
	// OpPushColor pushes a constant color. Operands: 4 f32.
	OpPushColor Opcode = 1
	// OpDup duplicates the top of the color stack.
	OpDup Opcode = 2
	// OpRatioLinear computes the blend ratio t from the sample's
	// projection onto an axis. Operands: x0, y0, x1, y1 (f32), then the
	// zero-arm, one-arm and blend locations. The zero arm runs when t<1,
	// the one arm when t>0, then control reaches the blend location.
	OpRatioLinear Opcode = 3
	// OpRatioRadial is OpRatioLinear with t derived from the distance to
	// a center between two radii. Operands: cx, cy, r0, r1 (f32) and the
	// three locations.
	OpRatioRadial Opcode = 4
	// OpRatioFace is OpRatioLinear with t taken from the face value.
	// Operands: the three locations.
	OpRatioFace Opcode = 5
	// OpBlendRatio combines the arm results pushed for the innermost
	// pending ratio: with 0<t<1 it pops two colors and pushes their
	// interpolation, otherwise it leaves the single arm result in place.
	OpBlendRatio Opcode = 6
	// OpFilter applies a 4×4 color matrix and translation to the popped
	// color. Operands: 16 + 4 f32.
	OpFilter Opcode = 7
	// OpConvert reinterprets the popped color's channels as being in the
	// given color space and converts them to linear sRGB. Operand: space
	// tag.
	OpConvert Opcode = 8
	// OpCompose pops the source, then the destination color and pushes
	// their mix/compose combination. Operands: mix tag, compose tag.
	OpCompose Opcode = 9

	numOpcodes = 10
)

// operandWords is the fixed operand arity of each opcode, in 32-bit
// words, including location operands.
var operandWords = [numOpcodes]int{
	OpReturn:      0,
	OpPushColor:   4,
	OpDup:         0,
	OpRatioLinear: 7,
	OpRatioRadial: 7,
	OpRatioFace:   3,
	OpBlendRatio:  0,
	OpFilter:      20,
	OpConvert:     1,
	OpCompose:     2,
}

func (op Opcode) String() string {
	switch op {
	case OpReturn:
		return "Return"
	case OpPushColor:
		return "PushColor"
	case OpDup:
		return "Dup"
	case OpRatioLinear:
		return "RatioLinear"
	case OpRatioRadial:
		return "RatioRadial"
	case OpRatioFace:
		return "RatioFace"
	case OpBlendRatio:
		return "BlendRatio"
	case OpFilter:
		return "Filter"
	case OpConvert:
		return "Convert"
	case OpCompose:
		return "Compose"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// Location is a relocatable jump or call target. During emission it
// refers to an instruction by index; serialization turns it into an
// absolute word offset.
type Location struct {
	inst int
}

// Instruction is one opcode plus its operand words. Location operands are
// carried separately until link time; in linked or decoded form they have
// been materialized into Args as word offsets.
type Instruction struct {
	Op   Opcode
	Args []uint32
	locs []*Location
}

// words returns the encoded size of the instruction.
func (inst *Instruction) words() int {
	return 1 + len(inst.Args) + len(inst.locs)
}

func f32Bits(f float32) uint32 {
	return math.Float32bits(f)
}

func bitsF32(u uint32) float32 {
	return math.Float32frombits(u)
}
