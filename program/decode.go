// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package program

import (
	"fmt"
)

// A DecodeError describes a malformed program binary. Programs that fail
// to decode must not be evaluated; there is no partial recovery.
type DecodeError struct {
	Word uint32
	Msg  string
}

func (err *DecodeError) Error() string {
	return fmt.Sprintf("word %d: %s", err.Word, err.Msg)
}

// Decode reads a serialized program back into instruction form. Every
// instruction's opcode must be in the known set and its operands must fit
// in the remaining words; any violation is fatal.
func Decode(words []uint32) ([]Instruction, error) {
	var insts []Instruction
	for i := 0; i < len(words); {
		tag := words[i]
		if tag&0xff != tag || tag >= numOpcodes {
			return nil, &DecodeError{Word: uint32(i), Msg: fmt.Sprintf("unknown opcode tag %#x", tag)}
		}
		op := Opcode(tag)
		arity := operandWords[op]
		if i+1+arity > len(words) {
			return nil, &DecodeError{
				Word: uint32(i),
				Msg:  fmt.Sprintf("%s: %d operand words needed, %d available", op, arity, len(words)-i-1),
			}
		}
		var args []uint32
		if arity > 0 {
			args = append([]uint32(nil), words[i+1:i+1+arity]...)
		}
		insts = append(insts, Instruction{Op: op, Args: args})
		i += 1 + arity
	}
	return insts, nil
}
