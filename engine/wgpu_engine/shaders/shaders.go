// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package shaders describes the pipeline's compute kernels: their
// bindings and workgroup shapes. The WGSL source may be absent, in which
// case only the CPU implementations in the cpu subpackage can run them.
package shaders

type BindType int

const (
	Buffer BindType = iota + 1
	BufReadOnly
	Uniform
	Image
)

func (typ BindType) IsMutable() bool {
	return typ == Buffer || typ == Image
}

type ComputeShader struct {
	Name          string
	WorkgroupSize [3]uint32
	Bindings      []BindType
	WGSL          WGSLSource
}

type WGSLSource struct {
	Code []byte
}

// Collection lists the pipeline's kernels. Binding order must match the
// resource order recorded by renderer.Render and the CPU kernels.
var Collection = struct {
	Coarse ComputeShader
	Fine   ComputeShader
}{
	Coarse: ComputeShader{
		Name:          "coarse",
		WorkgroupSize: [3]uint32{256, 1, 1},
		Bindings: []BindType{
			Uniform,     // config
			BufReadOnly, // shapes
			BufReadOnly, // scene edges
			Buffer,      // bump allocators
			Buffer,      // bin heads
			Buffer,      // face records
			Buffer,      // clipped edges
		},
	},
	Fine: ComputeShader{
		Name:          "fine",
		WorkgroupSize: [3]uint32{256, 1, 1},
		Bindings: []BindType{
			Uniform,     // config
			BufReadOnly, // programs
			BufReadOnly, // bump allocators
			BufReadOnly, // bin heads
			BufReadOnly, // face records
			BufReadOnly, // clipped edges
			Image,       // output
		},
	},
}
