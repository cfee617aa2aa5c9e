// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"math"
	"slices"

	"honnef.co/go/aspic/geom"
	"honnef.co/go/aspic/gfx"
	"honnef.co/go/aspic/jmath"
	"honnef.co/go/aspic/program"
	"honnef.co/go/aspic/renderer"
	"honnef.co/go/curve"
	"honnef.co/go/safeish"
)

// preparedFace is a face of the current bin with its per-bin work done
// once: edges decoded to f64, the blend mode unpacked, constant programs
// evaluated.
type preparedFace struct {
	rec           *renderer.FaceRecord
	mode          gfx.BlendMode
	edges         []geom.Edge
	constant      [4]float32
	isConstant    bool
	needsCentroid bool
	needsFace     bool
	fullArea      bool
}

// Fine shades one bin per workgroup, one pixel per invocation. The grid
// is (bins across, bins down, 1).
//
// Each pixel composites its bin's faces bottom to top over the base
// color, in premultiplied linear sRGB, then converts to the target color
// space and packs RGBA8.
func Fine(groups [3]uint32, resources []CPUBinding) {
	config := fromBytes[renderer.ConfigUniform](resources[0].(CPUBuffer))
	programs := safeish.SliceCast[[]uint32](resources[1].(CPUBuffer))
	bump := fromBytes[renderer.BumpAllocators](resources[2].(CPUBuffer))
	binHeads := safeish.SliceCast[[]uint32](resources[3].(CPUBuffer))
	faces := safeish.SliceCast[[]renderer.FaceRecord](resources[4].(CPUBuffer))
	clipped := safeish.SliceCast[[]renderer.EdgeRecord](resources[5].(CPUBuffer))
	tex := resources[6].(*CPUTexture)

	// A failed coarse pass has suppressed part of its output. Leave the
	// target untouched instead of rendering an incomplete scene.
	if bump.Failed != 0 {
		return
	}

	var vm program.VM
	for by := range groups[1] {
		for bx := range groups[0] {
			fineWorkgroup(config, bx, by, programs, binHeads, faces, clipped, tex, &vm)
		}
	}
}

func fineWorkgroup(
	config *renderer.ConfigUniform,
	bx, by uint32,
	programs []uint32,
	binHeads []uint32,
	faces []renderer.FaceRecord,
	clipped []renderer.EdgeRecord,
	tex *CPUTexture,
	vm *program.VM,
) {
	bin := by*config.WidthInBins + bx
	var list []*renderer.FaceRecord
	for idx := binHeads[bin]; idx != 0; idx = faces[idx-1].Next {
		list = append(list, &faces[idx-1])
	}
	// The coarse pass prepends, so the list is in reverse paint order.
	slices.Reverse(list)

	prepared := make([]preparedFace, len(list))
	for i, rec := range list {
		prepared[i] = prepareFace(rec, clipped, programs, vm)
	}

	base := unpackPremul(config.BaseColor)
	for local := range uint32(WG_SIZE) {
		px := bx*renderer.BinDim + local%renderer.BinDim
		py := by*renderer.BinDim + local/renderer.BinDim
		if px >= config.TargetWidth || py >= config.TargetHeight {
			continue
		}
		acc := base
		for i := range prepared {
			pf := &prepared[i]
			cov := pf.coverage(config, px, py)
			var src [4]float32
			if pf.isConstant {
				src = pf.constant
			} else {
				ctx := program.EvalContext{Pos: [2]float32{float32(px) + 0.5, float32(py) + 0.5}}
				if pf.needsFace {
					ctx.Face = cov
					ctx.HasFace = true
				}
				if pf.needsCentroid {
					ctx.Centroid = pf.pixelCentroid(px, py)
					ctx.HasCentroid = true
				}
				src = vm.Run(programs, pf.rec.ProgramOffset, &ctx)
			}
			a := src[3] * cov
			acc = pf.mode.Blend([4]float32{src[0] * a, src[1] * a, src[2] * a, a}, acc)
		}
		tex.Pixels[int(py)*tex.Width+int(px)] = packTarget(acc, gfx.Space(config.TargetSpace))
	}
}

func prepareFace(rec *renderer.FaceRecord, clipped []renderer.EdgeRecord, programs []uint32, vm *program.VM) preparedFace {
	pf := preparedFace{
		rec:       rec,
		mode:      renderer.FlagsBlendMode(rec.Flags),
		fullArea:  rec.Flags&renderer.FlagFullArea != 0,
		needsFace: rec.Flags&renderer.FlagNeedsFace != 0,
	}
	for _, er := range clipped[rec.EdgeIdx : rec.EdgeIdx+rec.EdgeCount] {
		pf.edges = append(pf.edges, geom.Edge{
			P0:         curve.Point{X: float64(er.X0), Y: float64(er.Y0)},
			P1:         curve.Point{X: float64(er.X1), Y: float64(er.Y1)},
			FakeCorner: er.Flags&renderer.EdgeFlagFakeCorner != 0,
		})
	}
	if rec.Flags&renderer.FlagConstant != 0 {
		pf.isConstant = true
		pf.constant = vm.Run(programs, rec.ProgramOffset, &program.EvalContext{})
	}
	pf.needsCentroid = rec.Flags&renderer.FlagNeedsCentroid != 0
	return pf
}

// pixelCentroid computes the centroid of the face's covered region
// within the pixel. The stored edges are clipped to the pixel rect and
// the full-span boundary runs summarized in the counters, bin-level and
// pixel-level alike, are synthesized back into edge geometry to close
// the region.
func (pf *preparedFace) pixelCentroid(px, py uint32) [2]float32 {
	center := [2]float32{float32(px) + 0.5, float32(py) + 0.5}
	if pf.fullArea {
		return center
	}
	pixel := geom.ClipRect{
		X0: float64(px),
		Y0: float64(py),
		X1: float64(px + 1),
		Y1: float64(py + 1),
	}
	var sub []geom.Edge
	counts := pf.rec.Counts
	for _, e := range pf.edges {
		var c [4]int32
		sub, c = geom.ClipEdge(sub, e, pixel)
		for i, n := range c {
			counts[i] += n
		}
	}
	all := synthBoundary(sub, counts, pixel)
	if len(all) == 0 || math.Abs(geom.Area(all)) < 1e-6 {
		// Barely covered pixels fall back to the pixel center.
		return center
	}
	c := geom.Centroid(all)
	return [2]float32{float32(c.X), float32(c.Y)}
}

func synthBoundary(dst []geom.Edge, counts [4]int32, r geom.ClipRect) []geom.Edge {
	add := func(n int32, p0, p1 curve.Point) {
		e := geom.Edge{P0: p0, P1: p1, FakeCorner: true}
		if n < 0 {
			e = e.Reversed()
			n = -n
		}
		for range n {
			dst = append(dst, e)
		}
	}
	// Positive counters run in increasing y on vertical boundaries and
	// increasing x on horizontal ones.
	add(counts[geom.BoundaryMinX], curve.Point{X: r.X0, Y: r.Y0}, curve.Point{X: r.X0, Y: r.Y1})
	add(counts[geom.BoundaryMaxX], curve.Point{X: r.X1, Y: r.Y0}, curve.Point{X: r.X1, Y: r.Y1})
	add(counts[geom.BoundaryMinY], curve.Point{X: r.X0, Y: r.Y0}, curve.Point{X: r.X1, Y: r.Y0})
	add(counts[geom.BoundaryMaxY], curve.Point{X: r.X0, Y: r.Y1}, curve.Point{X: r.X1, Y: r.Y1})
	return dst
}

func (pf *preparedFace) coverage(config *renderer.ConfigUniform, px, py uint32) float32 {
	if pf.fullArea {
		return 1
	}
	if renderer.FilterKind(config.Filter) == renderer.FilterBox {
		return pf.boxCoverage(px, py)
	}
	return pf.sampleCoverage(config, px, py)
}

// boxCoverage integrates coverage analytically over the pixel: the
// stored edges are clipped once more, to the pixel rect. The bin-level
// counters summarize full-span runs along the bin boundary; re-clamped
// to the pixel rect they contribute their area term like any other
// clipped edge would.
func (pf *preparedFace) boxCoverage(px, py uint32) float32 {
	pixel := geom.ClipRect{
		X0: float64(px),
		Y0: float64(py),
		X1: float64(px + 1),
		Y1: float64(py + 1),
	}
	var sub []geom.Edge
	var counts [4]int32
	for _, e := range pf.edges {
		var c [4]int32
		sub, c = geom.ClipEdge(sub, e, pixel)
		for i, n := range c {
			counts[i] += n
		}
	}
	area := geom.Area(sub) + geom.CounterAreaTerm(counts, pixel) +
		geom.CounterAreaTerm(pf.rec.Counts, pixel)
	return float32(jmath.Clamp(area, 0, 1))
}

// sampleCoverage reconstructs coverage from a weighted grid of winding
// tests across the filter's support. The bin's clip rect was expanded by
// the filter radius, so every sample lands inside the clipped geometry.
func (pf *preparedFace) sampleCoverage(config *renderer.ConfigUniform, px, py uint32) float32 {
	kind := renderer.FilterKind(config.Filter)
	r := filterRadius(config)
	n := 4
	if kind == renderer.FilterMitchell {
		n = 8
	}
	scale := float64(config.FilterScale)
	cx := float64(px) + 0.5
	cy := float64(py) + 0.5
	base := geom.CounterWindingTerm(pf.rec.Counts)

	var sum, total float64
	for j := range n {
		oy := -r + (float64(j)+0.5)*(2*r)/float64(n)
		wy := filterWeight(kind, oy/scale)
		for i := range n {
			ox := -r + (float64(i)+0.5)*(2*r)/float64(n)
			w := wy * filterWeight(kind, ox/scale)
			total += w
			pt := curve.Point{X: cx + ox, Y: cy + oy}
			// Positive winding only, matching the sign convention of the
			// analytic box path.
			if geom.WindingNumber(pf.edges, pt)+base > 0 {
				sum += w
			}
		}
	}
	return float32(jmath.Clamp(sum/total, 0, 1))
}

// filterWeight evaluates the reconstruction kernel at x, measured in
// units of the filter scale.
func filterWeight(kind renderer.FilterKind, x float64) float64 {
	x = math.Abs(x)
	switch kind {
	case renderer.FilterBilinear:
		return max(0, 1-x)
	case renderer.FilterMitchell:
		// Mitchell-Netravali with B = C = 1/3.
		switch {
		case x < 1:
			return (7*x*x*x - 12*x*x + 16.0/3) / 6
		case x < 2:
			return (-7.0/3*x*x*x + 12*x*x - 20*x + 32.0/3) / 6
		default:
			return 0
		}
	default:
		panic("unreachable")
	}
}

func unpackPremul(u uint32) [4]float32 {
	return [4]float32{
		float32(u&0xff) / 255,
		float32(u>>8&0xff) / 255,
		float32(u>>16&0xff) / 255,
		float32(u>>24&0xff) / 255,
	}
}

// packTarget converts a premultiplied linear sRGB pixel to the target
// color space and packs it as premultiplied RGBA8.
func packTarget(premul [4]float32, space gfx.Space) uint32 {
	c := gfx.Unpremultiply(premul)
	out := gfx.LinearRGBA(c[0], c[1], c[2], c[3]).Convert(space)
	return gfx.PackRGBA8([4]float32{
		out.Channel[0] * out.Alpha,
		out.Channel[1] * out.Alpha,
		out.Channel[2] * out.Alpha,
		out.Alpha,
	})
}
