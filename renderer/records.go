// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package renderer contains the host side of the raster pipeline: the
// record types shared with the kernels, scene resolution, buffer sizing,
// and the recording of upload/dispatch command lists.
package renderer

import (
	"structs"

	"honnef.co/go/aspic/gfx"
)

// Flag bits shared by ShapeRecord and FaceRecord. The low half word holds
// behavior bits, the upper two bytes carry the blend mode.
const (
	FlagNeedsCentroid = 1 << 0
	FlagNeedsFace     = 1 << 1
	FlagConstant      = 1 << 2
	FlagFullArea      = 1 << 3

	flagMixShift     = 16
	flagComposeShift = 24
)

// PackFlags combines behavior bits and a blend mode into a flags word.
func PackFlags(bits uint32, mode gfx.BlendMode) uint32 {
	return bits | uint32(mode.Mix)<<flagMixShift | uint32(mode.Compose)<<flagComposeShift
}

// FlagsBlendMode extracts the blend mode from a flags word.
func FlagsBlendMode(flags uint32) gfx.BlendMode {
	return gfx.BlendMode{
		Mix:     gfx.Mix(flags >> flagMixShift & 0xff),
		Compose: gfx.Compose(flags >> flagComposeShift & 0xff),
	}
}

// EdgeRecord is a directed edge in the layout shared between host and
// kernels: two f32 endpoints plus a flags word.
type EdgeRecord struct {
	_ structs.HostLayout

	X0, Y0 float32
	X1, Y1 float32
	Flags  uint32
}

// EdgeFlagFakeCorner marks an edge synthesized by clipping.
const EdgeFlagFakeCorner = 1 << 0

// ShapeRecord is the coarse pass's per-shape input: the program entry
// point, behavior flags, the shape's range in the scene edge buffer, and
// its outline bounds in raster pixels.
type ShapeRecord struct {
	_ structs.HostLayout

	ProgramOffset uint32
	Flags         uint32
	EdgeIdx       uint32
	EdgeCount     uint32
	Bbox          [4]float32
}

// FaceRecord is one entry of a bin's singly linked face list, written by
// the coarse pass and consumed by the fine pass. Next holds the previous
// list head as a one-based face index; zero terminates the list.
//
// Counts are the four signed edge-clip counters, indexed by the geom
// boundary constants: full-span boundary runs are not stored as edge
// geometry but summarized here, and the fine pass folds them back into
// area and winding.
type FaceRecord struct {
	_ structs.HostLayout

	Next          uint32
	ProgramOffset uint32
	Flags         uint32
	EdgeIdx       uint32
	EdgeCount     uint32
	Counts        [4]int32
}
