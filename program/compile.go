// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package program

import (
	"fmt"
)

// Compiled is the flat instruction form of a program tree, still
// position independent: jump and call targets are location markers that
// only become word offsets when the program is serialized into a blob.
type Compiled struct {
	insts []Instruction
	// pending holds gradient arm blocks waiting to be emitted out of
	// line, after the flow that references them.
	pending []pendingBlock
}

type pendingBlock struct {
	node Node
	loc  *Location
}

// Compile lowers a node tree into flat instructions. Each node emits its
// children before its own operator instruction; the emitted block leaves
// exactly one color on the stack. The main flow ends in a return, followed
// by the arm blocks of any ratio operators, each ending in a return of its
// own. Arm blocks are only ever entered through their ratio instruction,
// so falling off the end of the main flow halts the machine.
func Compile(n Node) *Compiled {
	c := &Compiled{}
	c.writeInstructions(n)
	c.emit(Instruction{Op: OpReturn})
	for len(c.pending) > 0 {
		blk := c.pending[0]
		c.pending = c.pending[1:]
		blk.loc.inst = len(c.insts)
		c.writeInstructions(blk.node)
		c.emit(Instruction{Op: OpReturn})
	}
	return c
}

func (c *Compiled) emit(inst Instruction) int {
	c.insts = append(c.insts, inst)
	return len(c.insts) - 1
}

func (c *Compiled) writeInstructions(n Node) {
	switch n := n.(type) {
	case Solid:
		col := n.Eval(nil)
		c.emit(Instruction{
			Op: OpPushColor,
			Args: []uint32{
				f32Bits(col[0]), f32Bits(col[1]), f32Bits(col[2]), f32Bits(col[3]),
			},
		})

	case Blend:
		var args []uint32
		op := OpRatioLinear
		switch n.Kind {
		case BlendLinear:
			args = []uint32{
				f32Bits(float32(n.Start.X)), f32Bits(float32(n.Start.Y)),
				f32Bits(float32(n.End.X)), f32Bits(float32(n.End.Y)),
			}
		case BlendRadial:
			op = OpRatioRadial
			args = []uint32{
				f32Bits(float32(n.Start.X)), f32Bits(float32(n.Start.Y)),
				f32Bits(n.Radius0), f32Bits(n.Radius1),
			}
		default:
			panic("unreachable")
		}
		c.writeRatio(op, args, n.Zero, n.One)

	case FaceSplit:
		c.writeRatio(OpRatioFace, nil, n.Outside, n.Inside)

	case Filter:
		c.writeInstructions(n.Input)
		args := make([]uint32, 0, 20)
		for _, f := range n.Matrix {
			args = append(args, f32Bits(f))
		}
		for _, f := range n.Translation {
			args = append(args, f32Bits(f))
		}
		c.emit(Instruction{Op: OpFilter, Args: args})

	case Convert:
		c.writeInstructions(n.Input)
		c.emit(Instruction{Op: OpConvert, Args: []uint32{uint32(n.Space)}})

	case Layer:
		c.writeInstructions(n.Dst)
		if n.Src == n.Dst {
			c.emit(Instruction{Op: OpDup})
		} else {
			c.writeInstructions(n.Src)
		}
		c.emit(Instruction{
			Op:   OpCompose,
			Args: []uint32{uint32(n.Mode.Mix), uint32(n.Mode.Compose)},
		})

	default:
		panic(fmt.Sprintf("unhandled node type %T", n))
	}
}

// writeRatio emits the shared shape of the three ratio operators: the
// ratio instruction that conditionally calls the arm blocks, followed by
// the blend instruction that joins the results. The arms themselves are
// queued for out-of-line emission; the blend target resolves to the
// instruction directly after the ratio.
func (c *Compiled) writeRatio(op Opcode, args []uint32, zero, one Node) {
	zeroLoc := &Location{}
	oneLoc := &Location{}
	blendLoc := &Location{inst: len(c.insts) + 1}
	c.emit(Instruction{
		Op:   op,
		Args: args,
		locs: []*Location{zeroLoc, oneLoc, blendLoc},
	})
	c.emit(Instruction{Op: OpBlendRatio})
	c.pending = append(c.pending, pendingBlock{zero, zeroLoc}, pendingBlock{one, oneLoc})
}

// Append serializes the program into blob as little-endian 32-bit words
// and returns the extended blob together with the program's starting word
// offset. Locations resolve to absolute word offsets within the blob, so
// several programs can share one blob.
func (c *Compiled) Append(blob []uint32) ([]uint32, uint32) {
	base := uint32(len(blob))
	offsets := make([]uint32, len(c.insts)+1)
	word := base
	for i := range c.insts {
		offsets[i] = word
		word += uint32(c.insts[i].words())
	}
	offsets[len(c.insts)] = word

	for i := range c.insts {
		inst := &c.insts[i]
		blob = append(blob, uint32(inst.Op))
		blob = append(blob, inst.Args...)
		for _, loc := range inst.locs {
			blob = append(blob, offsets[loc.inst])
		}
	}
	return blob, base
}

// Words serializes the program standalone, with offsets relative to its
// own first word.
func (c *Compiled) Words() []uint32 {
	words, _ := c.Append(nil)
	return words
}

// Linked returns the instruction list with all locations materialized as
// word offsets, the same form Decode produces.
func (c *Compiled) Linked() []Instruction {
	words := c.Words()
	insts, err := Decode(words)
	if err != nil {
		panic(fmt.Sprintf("compiled program does not decode: %s", err))
	}
	return insts
}
