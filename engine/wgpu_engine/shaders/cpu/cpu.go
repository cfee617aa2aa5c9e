// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cpu provides CPU implementations of the compute shaders.
//
// These shaders intentionally replicate the compute shaders on the CPU
// instead of using more CPU-friendly alternatives. They're a debug tool,
// not a viable fallback.
package cpu

import (
	"fmt"
	"unsafe"

	"honnef.co/go/aspic/renderer"
	"honnef.co/go/safeish"
)

// WG_SIZE is the number of invocations per workgroup, shared by both
// kernels. The coarse pass maps one invocation to one bin of its tile,
// the fine pass maps one invocation to one pixel of its bin.
const WG_SIZE = 256

func assert(b bool) {
	if !b {
		panic("failed assert")
	}
}

type CPUBinding interface {
	// One of CPUBuffer, *CPUTexture
}

type CPUBuffer []byte

type CPUTexture struct {
	Width  int
	Height int
	Pixels []uint32
}

// XXX move this into safeish
func fromBytes[E any, T *E](b []byte) T {
	if uintptr(len(b)) < unsafe.Sizeof(*new(E)) {
		panic(fmt.Sprintf(
			"buffer of size %d cannot represent object of size %d", len(b), unsafe.Sizeof(*new(E))))
	}

	return safeish.Cast[T](&b[0])
}

// filterRadius is the scaled support radius of the configured
// reconstruction filter, in pixels. Both kernels expand bin bounds by it
// so that every sample the fine pass takes lands inside clipped geometry.
func filterRadius(config *renderer.ConfigUniform) float64 {
	return float64(renderer.FilterKind(config.Filter).Radius() * config.FilterScale)
}
