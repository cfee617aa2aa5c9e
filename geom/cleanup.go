// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package geom

import (
	"math"
	"slices"

	"honnef.co/go/curve"
)

// WithOppositesRemoved returns edges with every pair of exactly reversed
// duplicates cancelled. It is O(n²) and intended for merging and debugging
// polygon soup, not for the raster path.
func WithOppositesRemoved(edges []Edge) []Edge {
	out := slices.Clone(edges)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[i].P0 == out[j].P1 && out[i].P1 == out[j].P0 {
				out = slices.Delete(out, j, j+1)
				out = slices.Delete(out, i, i+1)
				i--
				break
			}
		}
	}
	return out
}

const overlapEpsilon = 1e-9

// WithOverlappingRemoved cancels the shared portion of collinear,
// opposing edge pairs, splitting off the non-shared remainders. Total
// signed area is preserved to within 1e-6. O(n²) per pass; reference and
// debug use only.
func WithOverlappingRemoved(edges []Edge) []Edge {
	out := slices.Clone(edges)
restart:
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if pieces, ok := cancelOverlap(out[i], out[j]); ok {
				out = slices.Delete(out, j, j+1)
				out = slices.Delete(out, i, i+1)
				out = append(out, pieces...)
				goto restart
			}
		}
	}
	return out
}

// cancelOverlap checks whether a and b are collinear with opposing
// directions and a shared sub-segment. If so it returns the surviving
// pieces of both edges.
func cancelOverlap(a, b Edge) ([]Edge, bool) {
	da := a.P1.Sub(a.P0)
	db := b.P1.Sub(b.P0)
	lenA := da.Hypot()
	if lenA < overlapEpsilon {
		return nil, false
	}
	dir := da.Mul(1 / lenA)
	if math.Abs(dir.Cross(db)) > overlapEpsilon {
		return nil, false
	}
	if math.Abs(dir.Cross(b.P0.Sub(a.P0))) > overlapEpsilon {
		return nil, false
	}

	// Project both edges onto dir, measured from a.P0.
	sb0 := b.P0.Sub(a.P0).Dot(dir)
	sb1 := b.P1.Sub(a.P0).Dot(dir)
	if sb1 >= sb0 {
		// Same direction; duplicated coverage, nothing cancels.
		return nil, false
	}
	lo := max(0.0, sb1)
	hi := min(lenA, sb0)
	if hi-lo < overlapEpsilon {
		return nil, false
	}

	at := func(s float64) curve.Point {
		return curve.Point{X: a.P0.X + dir.X*s, Y: a.P0.Y + dir.Y*s}
	}
	var pieces []Edge
	appendPiece := func(p0, p1 curve.Point, fake bool) {
		if p0.Sub(p1).Hypot() < overlapEpsilon {
			return
		}
		pieces = append(pieces, Edge{P0: p0, P1: p1, FakeCorner: fake})
	}
	// Remainders of a, in a's direction.
	appendPiece(at(0), at(lo), a.FakeCorner)
	appendPiece(at(hi), at(lenA), a.FakeCorner)
	// Remainders of b, in b's (opposite) direction.
	appendPiece(b.P0, at(hi), b.FakeCorner)
	appendPiece(at(lo), b.P1, b.FakeCorner)
	return pieces, true
}
