// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package geom provides the directed-edge representation of polygon
// boundaries and the exact area, centroid and winding primitives shared by
// the coarse and fine raster passes.
package geom

import (
	"fmt"
	"math"

	"honnef.co/go/curve"
)

// Edge is a directed line segment. Closed regions are represented as edge
// lists in which every point's incoming-edge count equals its
// outgoing-edge count.
//
// FakeCorner marks edges that were synthesized by clipping, running along
// clip boundaries rather than the original outline. They carry signed area
// like any other edge but are excluded from outline-derived bounds.
type Edge struct {
	P0, P1     curve.Point
	FakeCorner bool
}

// NewEdge returns the directed edge from p0 to p1. Endpoints must be
// finite and distinct.
func NewEdge(p0, p1 curve.Point) Edge {
	if !isFinite(p0) || !isFinite(p1) {
		panic(fmt.Sprintf("non-finite edge endpoint: %v -> %v", p0, p1))
	}
	if p0 == p1 {
		panic(fmt.Sprintf("degenerate edge at %v", p0))
	}
	return Edge{P0: p0, P1: p1}
}

func isFinite(p curve.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Reversed returns the edge with its direction flipped.
func (e Edge) Reversed() Edge {
	return Edge{P0: e.P1, P1: e.P0, FakeCorner: e.FakeCorner}
}

// LineIntegralZero evaluates the line integral of the zero 1-form over e.
// It sums to ~0 over any closed edge list, which makes it a cheap closure
// check.
func LineIntegralZero(e Edge) float64 {
	return (e.P1.X - e.P0.X) + (e.P1.Y - e.P0.Y)
}

// IsClosed reports whether the summed zero line integral of edges stays
// within tol of zero.
func IsClosed(edges []Edge, tol float64) bool {
	var sum float64
	for _, e := range edges {
		sum += LineIntegralZero(e)
	}
	return math.Abs(sum) <= tol
}
