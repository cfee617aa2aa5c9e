// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package geom

import (
	"math"

	"honnef.co/go/curve"
)

// Area returns the signed area enclosed by edges, assuming they form a
// closed, consistently wound region. Counterclockwise winding in a y-up
// coordinate system yields positive area.
//
// Each edge contributes 0.5*(x1+x0)*(y1-y0). This is the algebraically
// cancelled form of the shoelace formula; unlike the x0*y1-x1*y0 form it
// does not subtract two large, nearly equal products for edges far from
// the origin.
func Area(edges []Edge) float64 {
	var sum float64
	for _, e := range edges {
		sum += edgeAreaTerm(e)
	}
	return sum
}

func edgeAreaTerm(e Edge) float64 {
	return 0.5 * (e.P1.X + e.P0.X) * (e.P1.Y - e.P0.Y)
}

// Centroid returns the centroid of the closed region bounded by edges.
// The caller must ensure the region's area is not near zero; the result is
// undefined otherwise.
func Centroid(edges []Edge) curve.Point {
	var cx, cy, area float64
	for _, e := range edges {
		x0, y0 := e.P0.X, e.P0.Y
		x1, y1 := e.P1.X, e.P1.Y
		cross := x0*y1 - x1*y0
		cx += (x0 + x1) * cross
		cy += (y0 + y1) * cross
		area += cross
	}
	area *= 0.5
	inv := 1 / (6 * area)
	return curve.Point{X: cx * inv, Y: cy * inv}
}

// WindingNumber returns the number of times the closed curve described by
// edges wraps around pt, positive for counterclockwise wrapping. Points on
// an edge are attributed by the half-open crossing rule.
func WindingNumber(edges []Edge, pt curve.Point) int {
	var winding int
	for _, e := range edges {
		if e.P0.Y <= pt.Y {
			if e.P1.Y > pt.Y && isLeft(e, pt) > 0 {
				winding++
			}
		} else {
			if e.P1.Y <= pt.Y && isLeft(e, pt) < 0 {
				winding--
			}
		}
	}
	return winding
}

// isLeft is positive if pt lies left of the infinite line through e,
// negative if right.
func isLeft(e Edge, pt curve.Point) float64 {
	return (e.P1.X-e.P0.X)*(pt.Y-e.P0.Y) - (pt.X-e.P0.X)*(e.P1.Y-e.P0.Y)
}

// ClosestDistanceToOrigin returns the distance from the origin to the
// segment p0-p1: the perpendicular distance if the origin projects onto
// the segment, otherwise the distance to the nearer endpoint.
func ClosestDistanceToOrigin(p0, p1 curve.Point) float64 {
	d := p1.Sub(p0)
	lenSq := d.Dot(d)
	if lenSq <= epsilon {
		return math.Hypot(p0.X, p0.Y)
	}
	// Projection of the origin onto the line, as a parameter along d.
	t := -(curve.Vec2(p0).Dot(d)) / lenSq
	if t >= 0 && t <= 1 {
		foot := curve.Point{X: p0.X + t*d.X, Y: p0.Y + t*d.Y}
		return math.Hypot(foot.X, foot.Y)
	}
	return min(math.Hypot(p0.X, p0.Y), math.Hypot(p1.X, p1.Y))
}

const epsilon = 1e-12
