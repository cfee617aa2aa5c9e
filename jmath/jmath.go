// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package jmath provides float32 conveniences shared by the shading and
// raster kernels.
package jmath

import (
	"math"

	"golang.org/x/exp/constraints"
)

const Epsilon = 1e-12

func Abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}

func Floor32(f float32) float32 {
	return float32(math.Floor(float64(f)))
}

func Ceil32(f float32) float32 {
	return float32(math.Ceil(float64(f)))
}

func Sqrt32(f float32) float32 {
	return float32(math.Sqrt(float64(f)))
}

func Clamp[T constraints.Integer | constraints.Float](x, lo, hi T) T {
	return min(max(x, lo), hi)
}
