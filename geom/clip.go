// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package geom

import (
	"math"
	"slices"

	"honnef.co/go/curve"
)

// Boundary indices of a ClipRect, in the order the per-bin edge-clip
// counters are stored.
const (
	BoundaryMinX = 0
	BoundaryMinY = 1
	BoundaryMaxX = 2
	BoundaryMaxY = 3
)

// ClipRect is an axis-aligned clip region.
type ClipRect struct {
	X0, Y0, X1, Y1 float64
}

func (r ClipRect) Width() float64  { return r.X1 - r.X0 }
func (r ClipRect) Height() float64 { return r.Y1 - r.Y0 }
func (r ClipRect) Area() float64   { return r.Width() * r.Height() }

func (r ClipRect) clamp(p curve.Point) curve.Point {
	return curve.Point{
		X: min(max(p.X, r.X0), r.X1),
		Y: min(max(p.Y, r.Y0), r.Y1),
	}
}

const snapEpsilon = 1e-9

// ClipEdge clips e against r, preserving exact signed area.
//
// The clipped form of an edge is the polyline obtained by splitting it
// where it crosses the four boundary lines and clamping every piece into
// the rect. Pieces clamped onto a boundary become axis-aligned boundary
// runs; a run spanning its entire boundary is not stored as geometry but
// summarized in one of four signed counters (indexed by the Boundary
// constants), +1 for traversal in increasing y (vertical boundaries) or
// increasing x (horizontal boundaries). All other pieces are appended to
// dst, with clamp-synthesized runs flagged as fake corners.
//
// The returned edges plus [CounterAreaTerm] of the counters reproduce the
// edge's exact area contribution restricted to r.
func ClipEdge(dst []Edge, e Edge, r ClipRect) (out []Edge, counts [4]int32) {
	d := e.P1.Sub(e.P0)

	ts := make([]float64, 2, 6)
	ts[0], ts[1] = 0, 1
	addCrossing := func(delta, origin, boundary float64) {
		if math.Abs(delta) < epsilon {
			return
		}
		t := (boundary - origin) / delta
		if t > 0 && t < 1 {
			ts = append(ts, t)
		}
	}
	addCrossing(d.X, e.P0.X, r.X0)
	addCrossing(d.X, e.P0.X, r.X1)
	addCrossing(d.Y, e.P0.Y, r.Y0)
	addCrossing(d.Y, e.P0.Y, r.Y1)
	slices.Sort(ts)

	out = dst
	prev := r.clamp(e.P0)
	for i := 1; i < len(ts); i++ {
		if ts[i]-ts[i-1] < epsilon {
			continue
		}
		next := r.clamp(curve.Point{X: e.P0.X + ts[i]*d.X, Y: e.P0.Y + ts[i]*d.Y})
		if math.Abs(next.X-prev.X) < snapEpsilon && math.Abs(next.Y-prev.Y) < snapEpsilon {
			prev = next
			continue
		}
		piece := Edge{P0: prev, P1: next, FakeCorner: e.FakeCorner}
		prev = next
		if boundary, full, sign, ok := classifyBoundaryRun(piece, r); ok {
			if full {
				counts[boundary] += sign
			} else {
				piece.FakeCorner = true
				out = append(out, piece)
			}
			continue
		}
		out = append(out, piece)
	}
	return out, counts
}

// classifyBoundaryRun reports whether piece lies on one of r's boundaries,
// and if so which one, whether it spans the boundary corner to corner, and
// the traversal sign.
func classifyBoundaryRun(piece Edge, r ClipRect) (boundary int, full bool, sign int32, ok bool) {
	onX0 := math.Abs(piece.P0.X-r.X0) < snapEpsilon && math.Abs(piece.P1.X-r.X0) < snapEpsilon
	onX1 := math.Abs(piece.P0.X-r.X1) < snapEpsilon && math.Abs(piece.P1.X-r.X1) < snapEpsilon
	onY0 := math.Abs(piece.P0.Y-r.Y0) < snapEpsilon && math.Abs(piece.P1.Y-r.Y0) < snapEpsilon
	onY1 := math.Abs(piece.P0.Y-r.Y1) < snapEpsilon && math.Abs(piece.P1.Y-r.Y1) < snapEpsilon

	switch {
	case onX0 || onX1:
		boundary = BoundaryMinX
		if onX1 {
			boundary = BoundaryMaxX
		}
		lo, hi := piece.P0.Y, piece.P1.Y
		sign = 1
		if lo > hi {
			lo, hi = hi, lo
			sign = -1
		}
		full = math.Abs(lo-r.Y0) < snapEpsilon && math.Abs(hi-r.Y1) < snapEpsilon
		return boundary, full, sign, true
	case onY0 || onY1:
		boundary = BoundaryMinY
		if onY1 {
			boundary = BoundaryMaxY
		}
		lo, hi := piece.P0.X, piece.P1.X
		sign = 1
		if lo > hi {
			lo, hi = hi, lo
			sign = -1
		}
		full = math.Abs(lo-r.X0) < snapEpsilon && math.Abs(hi-r.X1) < snapEpsilon
		return boundary, full, sign, true
	}
	return 0, false, 0, false
}

// CounterAreaTerm is the closed-form signed area contributed by counted
// full-span boundary runs. Horizontal runs contribute nothing in the
// cancelled shoelace form; a vertical run at x contributes x*dy.
func CounterAreaTerm(counts [4]int32, r ClipRect) float64 {
	h := r.Height()
	return h * (r.X0*float64(counts[BoundaryMinX]) + r.X1*float64(counts[BoundaryMaxX]))
}

// CounterWindingTerm is the winding contribution of counted boundary runs
// for any point strictly inside r: only the max-X boundary lies to the
// right of interior points, so only its counter crosses the test ray.
func CounterWindingTerm(counts [4]int32) int {
	return int(counts[BoundaryMaxX])
}
