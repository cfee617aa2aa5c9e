// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package aspic

import (
	"fmt"
	"iter"
	"math"

	"honnef.co/go/aspic/geom"
	"honnef.co/go/curve"
)

// FlattenTolerance is the default tolerance for turning shapes into edge
// lists, in pixels.
const FlattenTolerance = 0.1

// Polygon returns the closed outline through the given points, in order.
func Polygon(pts ...curve.Point) []geom.Edge {
	if len(pts) < 3 {
		panic(fmt.Sprintf("polygon with %d points", len(pts)))
	}
	edges := make([]geom.Edge, 0, len(pts))
	for i, pt := range pts {
		next := pts[(i+1)%len(pts)]
		if pt == next {
			continue
		}
		edges = append(edges, geom.NewEdge(pt, next))
	}
	return edges
}

// FlattenShape converts a shape into a closed edge list, subdividing
// curved segments until they deviate from their chords by at most the
// tolerance.
func FlattenShape(shape curve.Shape, tolerance float64) []geom.Edge {
	return FlattenPath(shape.PathElements(tolerance), tolerance)
}

// FlattenPath converts a path into a closed edge list. Every subpath is
// closed, whether or not the path closes it.
func FlattenPath(path iter.Seq[curve.PathElement], tolerance float64) []geom.Edge {
	var edges []geom.Edge
	var start, cur curve.Point
	open := false

	lineTo := func(pt curve.Point) {
		if pt == cur {
			return
		}
		edges = append(edges, geom.NewEdge(cur, pt))
		cur = pt
	}
	closeSubpath := func() {
		if open && cur != start {
			edges = append(edges, geom.NewEdge(cur, start))
		}
		cur = start
		open = false
	}

	for el := range path {
		switch el.Kind {
		case curve.MoveToKind:
			closeSubpath()
			start = el.P0
			cur = el.P0
			open = true
		case curve.LineToKind:
			lineTo(el.P0)
		case curve.QuadToKind:
			flattenQuad(cur, el.P0, el.P1, tolerance, lineTo)
		case curve.CubicToKind:
			flattenCubic(cur, el.P0, el.P1, el.P2, tolerance, lineTo)
		case curve.ClosePathKind:
			closeSubpath()
		default:
			panic(fmt.Sprintf("unhandled path element kind %d", el.Kind))
		}
	}
	closeSubpath()
	return edges
}

func midpoint(a, b curve.Point) curve.Point {
	return curve.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func flattenQuad(p0, p1, p2 curve.Point, tolerance float64, lineTo func(curve.Point)) {
	m := midpoint(p0, p2)
	if math.Hypot(p1.X-m.X, p1.Y-m.Y) <= 2*tolerance {
		lineTo(p2)
		return
	}
	q0 := midpoint(p0, p1)
	q1 := midpoint(p1, p2)
	r := midpoint(q0, q1)
	flattenQuad(p0, q0, r, tolerance, lineTo)
	flattenQuad(r, q1, p2, tolerance, lineTo)
}

func flattenCubic(p0, p1, p2, p3 curve.Point, tolerance float64, lineTo func(curve.Point)) {
	// Control point deviation bounds the curve's deviation from the
	// chord.
	d1 := math.Hypot(p1.X-(2*p0.X+p3.X)/3, p1.Y-(2*p0.Y+p3.Y)/3)
	d2 := math.Hypot(p2.X-(p0.X+2*p3.X)/3, p2.Y-(p0.Y+2*p3.Y)/3)
	if max(d1, d2) <= tolerance {
		lineTo(p3)
		return
	}
	q0 := midpoint(p0, p1)
	q1 := midpoint(p1, p2)
	q2 := midpoint(p2, p3)
	r0 := midpoint(q0, q1)
	r1 := midpoint(q1, q2)
	s := midpoint(r0, r1)
	flattenCubic(p0, q0, r0, s, tolerance, lineTo)
	flattenCubic(s, r1, q2, p3, tolerance, lineTo)
}
