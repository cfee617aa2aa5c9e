// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"honnef.co/go/aspic/geom"
	"honnef.co/go/aspic/renderer"
	"honnef.co/go/curve"
	"honnef.co/go/safeish"
)

// binFace is one face a coarse workgroup wants to emit, staged until the
// workgroup has claimed its bump allocation.
type binFace struct {
	bin    uint32
	flags  uint32
	edges  []geom.Edge
	counts [4]int32
}

// Coarse bins one shape into the face lists of the bins of one tile per
// workgroup. The grid is (tiles across, tiles down, shapes).
//
// Faces are prepended to the per-bin lists, so dispatching shapes in
// paint order leaves the topmost shape at each list head. The fine pass
// relies on that and walks the lists in reverse.
func Coarse(groups [3]uint32, resources []CPUBinding) {
	config := fromBytes[renderer.ConfigUniform](resources[0].(CPUBuffer))
	shapes := safeish.SliceCast[[]renderer.ShapeRecord](resources[1].(CPUBuffer))
	sceneEdges := safeish.SliceCast[[]renderer.EdgeRecord](resources[2].(CPUBuffer))
	bump := fromBytes[renderer.BumpAllocators](resources[3].(CPUBuffer))
	binHeads := safeish.SliceCast[[]uint32](resources[4].(CPUBuffer))
	faces := safeish.SliceCast[[]renderer.FaceRecord](resources[5].(CPUBuffer))
	clipped := safeish.SliceCast[[]renderer.EdgeRecord](resources[6].(CPUBuffer))

	assert(uint32(len(shapes)) >= config.NumShapes)

	for z := range groups[2] {
		for ty := range groups[1] {
			for tx := range groups[0] {
				coarseWorkgroup(config, tx, ty, z, shapes, sceneEdges, bump, binHeads, faces, clipped)
			}
		}
	}
}

func coarseWorkgroup(
	config *renderer.ConfigUniform,
	tx, ty, z uint32,
	shapes []renderer.ShapeRecord,
	sceneEdges []renderer.EdgeRecord,
	bump *renderer.BumpAllocators,
	binHeads []uint32,
	faces []renderer.FaceRecord,
	clipped []renderer.EdgeRecord,
) {
	shape := &shapes[z]
	radius := filterRadius(config)

	var out []binFace
	for local := range uint32(WG_SIZE) {
		bx := tx*renderer.TileDim + local%renderer.TileDim
		by := ty*renderer.TileDim + local/renderer.TileDim
		if bx >= config.WidthInBins || by >= config.HeightInBins {
			continue
		}
		clip := geom.ClipRect{
			X0: float64(bx*renderer.BinDim) - radius,
			Y0: float64(by*renderer.BinDim) - radius,
			X1: float64((bx+1)*renderer.BinDim) + radius,
			Y1: float64((by+1)*renderer.BinDim) + radius,
		}
		if float64(shape.Bbox[0]) >= clip.X1 || float64(shape.Bbox[2]) <= clip.X0 ||
			float64(shape.Bbox[1]) >= clip.Y1 || float64(shape.Bbox[3]) <= clip.Y0 {
			continue
		}
		bin := by*config.WidthInBins + bx

		if shape.Flags&renderer.FlagFullArea != 0 {
			out = append(out, binFace{
				bin:   bin,
				flags: shape.Flags,
			})
			continue
		}

		var stored []geom.Edge
		var counts [4]int32
		for _, rec := range sceneEdges[shape.EdgeIdx : shape.EdgeIdx+shape.EdgeCount] {
			e := geom.Edge{
				P0:         curve.Point{X: float64(rec.X0), Y: float64(rec.Y0)},
				P1:         curve.Point{X: float64(rec.X1), Y: float64(rec.Y1)},
				FakeCorner: rec.Flags&renderer.EdgeFlagFakeCorner != 0,
			}
			var c [4]int32
			stored, c = geom.ClipEdge(stored, e, clip)
			for i, n := range c {
				counts[i] += n
			}
		}

		if len(stored) == 0 {
			// The outline doesn't intersect this bin. Either the bin is
			// entirely inside the shape, summarized by the boundary
			// counters, or entirely outside it.
			if geom.CounterWindingTerm(counts) == 0 {
				continue
			}
			out = append(out, binFace{
				bin:    bin,
				flags:  shape.Flags | renderer.FlagFullArea,
				counts: counts,
			})
			continue
		}

		out = append(out, binFace{
			bin:    bin,
			flags:  shape.Flags,
			edges:  stored,
			counts: counts,
		})
	}

	if len(out) == 0 {
		return
	}

	var edgeTotal uint32
	for i := range out {
		edgeTotal += uint32(len(out[i].edges))
	}
	faceBase := bump.Faces
	edgeBase := bump.Edges
	// The counters keep advancing past capacity so that a failed render
	// reports how much space it wanted.
	bump.Faces += uint32(len(out))
	bump.Edges += edgeTotal
	if bump.Faces > config.FacesSize {
		bump.Failed |= renderer.AllocFailedFaces
	}
	if bump.Edges > config.EdgesSize {
		bump.Failed |= renderer.AllocFailedEdges
	}
	if bump.Failed != 0 {
		return
	}

	faceIdx := faceBase
	edgeIdx := edgeBase
	for _, bf := range out {
		for _, e := range bf.edges {
			var flags uint32
			if e.FakeCorner {
				flags = renderer.EdgeFlagFakeCorner
			}
			clipped[edgeIdx] = renderer.EdgeRecord{
				X0:    float32(e.P0.X),
				Y0:    float32(e.P0.Y),
				X1:    float32(e.P1.X),
				Y1:    float32(e.P1.Y),
				Flags: flags,
			}
			edgeIdx++
		}
		faces[faceIdx] = renderer.FaceRecord{
			Next:          binHeads[bf.bin],
			ProgramOffset: shape.ProgramOffset,
			Flags:         bf.flags,
			EdgeIdx:       edgeIdx - uint32(len(bf.edges)),
			EdgeCount:     uint32(len(bf.edges)),
			Counts:        bf.counts,
		}
		// Face indices in the lists are one-based; zero terminates.
		binHeads[bf.bin] = faceIdx + 1
		faceIdx++
	}
}
