// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu

import (
	"testing"
	"unsafe"

	"honnef.co/go/aspic/geom"
	"honnef.co/go/aspic/gfx"
	"honnef.co/go/aspic/program"
	"honnef.co/go/aspic/renderer"
	"honnef.co/go/curve"
	"honnef.co/go/safeish"
)

// pipeline bundles the buffers of one kernel run.
type pipeline struct {
	config   renderer.ConfigUniform
	shapes   []renderer.ShapeRecord
	edges    []renderer.EdgeRecord
	programs []uint32

	bump     CPUBuffer
	binHeads CPUBuffer
	faces    CPUBuffer
	clipped  CPUBuffer
	tex      *CPUTexture
}

func newPipeline(cfg renderer.ConfigUniform, shapes []renderer.ShapeRecord, edges []renderer.EdgeRecord, programs []uint32) *pipeline {
	return &pipeline{
		config:   cfg,
		shapes:   shapes,
		edges:    edges,
		programs: programs,
		bump:     make(CPUBuffer, unsafe.Sizeof(renderer.BumpAllocators{})),
		binHeads: make(CPUBuffer, 4*cfg.WidthInBins*cfg.HeightInBins),
		faces:    make(CPUBuffer, uintptr(cfg.FacesSize)*unsafe.Sizeof(renderer.FaceRecord{})),
		clipped:  make(CPUBuffer, uintptr(cfg.EdgesSize)*unsafe.Sizeof(renderer.EdgeRecord{})),
		tex: &CPUTexture{
			Width:  int(cfg.TargetWidth),
			Height: int(cfg.TargetHeight),
			Pixels: make([]uint32, cfg.TargetWidth*cfg.TargetHeight),
		},
	}
}

func (p *pipeline) coarse(groups [3]uint32) {
	Coarse(groups, []CPUBinding{
		CPUBuffer(safeish.AsBytes(&p.config)),
		CPUBuffer(safeish.SliceCast[[]byte](p.shapes)),
		CPUBuffer(safeish.SliceCast[[]byte](p.edges)),
		p.bump,
		p.binHeads,
		p.faces,
		p.clipped,
	})
}

func (p *pipeline) fine(groups [3]uint32) {
	Fine(groups, []CPUBinding{
		CPUBuffer(safeish.AsBytes(&p.config)),
		CPUBuffer(safeish.SliceCast[[]byte](p.programs)),
		p.bump,
		p.binHeads,
		p.faces,
		p.clipped,
		p.tex,
	})
}

func (p *pipeline) bumpAllocators() *renderer.BumpAllocators {
	return fromBytes[renderer.BumpAllocators](p.bump)
}

func (p *pipeline) heads() []uint32 {
	return safeish.SliceCast[[]uint32](p.binHeads)
}

func (p *pipeline) faceRecords() []renderer.FaceRecord {
	return safeish.SliceCast[[]renderer.FaceRecord](p.faces)
}

// faceArea folds a face's stored edges and boundary counters back into
// the area it covers within binRect.
func (p *pipeline) faceArea(face renderer.FaceRecord, binRect geom.ClipRect) float64 {
	recs := safeish.SliceCast[[]renderer.EdgeRecord](p.clipped)
	var edges []geom.Edge
	for _, er := range recs[face.EdgeIdx : face.EdgeIdx+face.EdgeCount] {
		edges = append(edges, geom.Edge{
			P0: curve.Point{X: float64(er.X0), Y: float64(er.Y0)},
			P1: curve.Point{X: float64(er.X1), Y: float64(er.Y1)},
		})
	}
	return geom.Area(edges) + geom.CounterAreaTerm(face.Counts, binRect)
}

func binRect(bx, by uint32) geom.ClipRect {
	return geom.ClipRect{
		X0: float64(bx * renderer.BinDim),
		Y0: float64(by * renderer.BinDim),
		X1: float64((bx + 1) * renderer.BinDim),
		Y1: float64((by + 1) * renderer.BinDim),
	}
}

// squareEdges returns a positively wound axis-aligned square.
func squareEdges(x0, y0, x1, y1 float32) []renderer.EdgeRecord {
	return []renderer.EdgeRecord{
		{X0: x0, Y0: y0, X1: x1, Y1: y0},
		{X0: x1, Y0: y0, X1: x1, Y1: y1},
		{X0: x1, Y0: y1, X1: x0, Y1: y1},
		{X0: x0, Y0: y1, X1: x0, Y1: y0},
	}
}

func solidProgram(c gfx.Color) ([]uint32, uint32) {
	return program.Compile(program.Solid{Color: c}).Append(nil)
}

func squareScene(x0, y0, x1, y1 float32, width, height uint32) *pipeline {
	programs, offset := solidProgram(gfx.LinearRGBA(1, 0, 0, 1))
	cfg := renderer.ConfigUniform{
		TargetWidth:  width,
		TargetHeight: height,
		WidthInBins:  (width + renderer.BinDim - 1) / renderer.BinDim,
		HeightInBins: (height + renderer.BinDim - 1) / renderer.BinDim,
		NumShapes:    1,
		FilterScale:  1,
		FacesSize:    64,
		EdgesSize:    1024,
	}
	shapes := []renderer.ShapeRecord{{
		ProgramOffset: offset,
		Flags:         renderer.PackFlags(0, renderer.PlainOver),
		EdgeIdx:       0,
		EdgeCount:     4,
		Bbox:          [4]float32{x0, y0, x1, y1},
	}}
	return newPipeline(cfg, shapes, squareEdges(x0, y0, x1, y1), programs)
}

func TestCoarseBinsSquare(t *testing.T) {
	p := squareScene(8, 8, 24, 24, 32, 32)
	p.coarse([3]uint32{1, 1, 1})

	bump := p.bumpAllocators()
	if bump.Failed != 0 {
		t.Fatalf("unexpected allocation failure %#x", bump.Failed)
	}
	if bump.Faces != 4 {
		t.Fatalf("got %d faces, want 4", bump.Faces)
	}
	faces := p.faceRecords()
	for bin, head := range p.heads() {
		if head == 0 {
			t.Fatalf("bin %d has no face", bin)
		}
		face := faces[head-1]
		if face.Next != 0 {
			t.Fatalf("bin %d has more than one face", bin)
		}
		if face.EdgeCount == 0 {
			t.Fatalf("bin %d has a partial face without stored edges", bin)
		}
		// The square covers an 8x8 corner of each of the four bins.
		area := p.faceArea(face, binRect(uint32(bin)%2, uint32(bin)/2))
		if area < 63.99 || area > 64.01 {
			t.Fatalf("bin %d covers area %v, want 64", bin, area)
		}
	}
}

func TestCoarseSingleBin(t *testing.T) {
	p := squareScene(2, 2, 10, 10, 64, 64)
	p.coarse([3]uint32{1, 1, 1})

	if got := p.bumpAllocators().Faces; got != 1 {
		t.Fatalf("got %d faces, want 1", got)
	}
	for bin, head := range p.heads() {
		if bin == 0 {
			if head == 0 {
				t.Fatalf("bin 0 has no face")
			}
		} else if head != 0 {
			t.Fatalf("bin %d has a face for a disjoint shape", bin)
		}
	}
}

func TestCoarseInteriorBinIsFull(t *testing.T) {
	p := squareScene(0, 0, 64, 64, 64, 64)
	p.coarse([3]uint32{1, 1, 1})

	faces := p.faceRecords()
	// Bin (1,1) spans (16,16)-(32,32), strictly inside the square. Its
	// face must be a counter-only full face.
	head := p.heads()[1*4+1]
	if head == 0 {
		t.Fatal("interior bin has no face")
	}
	face := faces[head-1]
	if face.Flags&renderer.FlagFullArea == 0 {
		t.Fatalf("interior face is not marked full, flags %#x", face.Flags)
	}
	if face.EdgeCount != 0 {
		t.Fatalf("interior face stores %d edges", face.EdgeCount)
	}
	if face.Counts[2] != 1 {
		t.Fatalf("interior face has winding baseline %d, want 1", face.Counts[2])
	}
	if area := p.faceArea(face, binRect(1, 1)); area < 255.99 || area > 256.01 {
		t.Fatalf("interior face area %v, want 256", area)
	}
}

func TestCoarseOverflow(t *testing.T) {
	p := squareScene(8, 8, 24, 24, 32, 32)
	p.config.FacesSize = 2
	p.coarse([3]uint32{1, 1, 1})

	bump := p.bumpAllocators()
	if bump.Failed&renderer.AllocFailedFaces == 0 {
		t.Fatalf("expected face allocation failure, got %#x", bump.Failed)
	}
	// The counter reports the wanted size.
	if bump.Faces != 4 {
		t.Fatalf("failed run wanted %d faces, want 4", bump.Faces)
	}
	for bin, head := range p.heads() {
		if head != 0 {
			t.Fatalf("bin %d was written despite the failure", bin)
		}
	}
}

func TestCoarsePaintOrder(t *testing.T) {
	programs, offset := solidProgram(gfx.LinearRGBA(1, 0, 0, 1))
	cfg := renderer.ConfigUniform{
		TargetWidth:  16,
		TargetHeight: 16,
		WidthInBins:  1,
		HeightInBins: 1,
		NumShapes:    2,
		FilterScale:  1,
		FacesSize:    8,
		EdgesSize:    64,
	}
	shape := renderer.ShapeRecord{
		ProgramOffset: offset,
		Flags:         renderer.PackFlags(0, renderer.PlainOver),
		EdgeIdx:       0,
		EdgeCount:     4,
		Bbox:          [4]float32{2, 2, 10, 10},
	}
	p := newPipeline(cfg, []renderer.ShapeRecord{shape, shape}, squareEdges(2, 2, 10, 10), programs)
	p.coarse([3]uint32{1, 1, 2})

	// The later shape must end up at the list head, linking back to the
	// earlier one.
	head := p.heads()[0]
	if head != 2 {
		t.Fatalf("list head is %d, want 2", head)
	}
	if next := p.faceRecords()[head-1].Next; next != 1 {
		t.Fatalf("second face links to %d, want 1", next)
	}
}

func pixelAlpha(px uint32) uint32 { return px >> 24 & 0xff }
func pixelRed(px uint32) uint32   { return px & 0xff }

func TestFineSolidSquare(t *testing.T) {
	p := squareScene(8, 8, 24, 24, 32, 32)
	p.coarse([3]uint32{1, 1, 1})
	p.fine([3]uint32{2, 2, 1})

	at := func(x, y int) uint32 { return p.tex.Pixels[y*32+x] }
	if got := at(16, 16); got != 0xff0000ff {
		t.Fatalf("interior pixel is %#08x, want 0xff0000ff", got)
	}
	if got := at(4, 4); got != 0 {
		t.Fatalf("exterior pixel is %#08x, want 0", got)
	}
	// Pixel (8,16) spans x in [8,9], fully inside. Pixel (7,16) is
	// fully outside.
	if got := at(8, 16); got != 0xff0000ff {
		t.Fatalf("boundary interior pixel is %#08x, want 0xff0000ff", got)
	}
	if got := at(7, 16); got != 0 {
		t.Fatalf("boundary exterior pixel is %#08x, want 0", got)
	}
}

func TestFineBoxPartialPixel(t *testing.T) {
	p := squareScene(8.5, 8, 24, 24, 32, 32)
	p.coarse([3]uint32{1, 1, 1})
	p.fine([3]uint32{2, 2, 1})

	// Pixel (8,16) spans x in [8,9]; the square starts at 8.5, covering
	// half of it.
	got := p.tex.Pixels[16*32+8]
	if a := pixelAlpha(got); a < 126 || a > 130 {
		t.Fatalf("half covered pixel has alpha %d, want ~128", a)
	}
	if r := pixelRed(got); r != pixelAlpha(got) {
		t.Fatalf("half covered pixel is not premultiplied red: %#08x", got)
	}
}

func TestFineBilinearEdge(t *testing.T) {
	p := squareScene(8.5, 8, 24, 24, 32, 32)
	p.config.Filter = uint32(renderer.FilterBilinear)
	p.coarse([3]uint32{1, 1, 1})
	p.fine([3]uint32{2, 2, 1})

	at := func(x, y int) uint32 { return p.tex.Pixels[y*32+x] }
	// The pixel whose center sits on the edge resolves to roughly half
	// coverage; pixels a filter radius away are solid or empty.
	if a := pixelAlpha(at(8, 16)); a < 108 || a > 148 {
		t.Fatalf("edge pixel has alpha %d, want ~128", a)
	}
	if a := pixelAlpha(at(12, 16)); a != 255 {
		t.Fatalf("interior pixel has alpha %d, want 255", a)
	}
	if a := pixelAlpha(at(5, 16)); a != 0 {
		t.Fatalf("exterior pixel has alpha %d, want 0", a)
	}
}

func TestFineBoxOffBinOutline(t *testing.T) {
	// The square's left edge lies outside every bin and survives only as
	// boundary counters; the right edge crosses the two right bins. Box
	// coverage right of the outline must fold the counters back to zero.
	p := squareScene(-8, -8, 24, 40, 32, 32)
	p.coarse([3]uint32{1, 1, 1})
	p.fine([3]uint32{2, 2, 1})

	at := func(x, y int) uint32 { return p.tex.Pixels[y*32+x] }
	if got := at(16, 16); got != 0xff0000ff {
		t.Fatalf("interior pixel is %#08x, want 0xff0000ff", got)
	}
	for _, y := range []int{4, 16, 28} {
		if got := at(28, y); got != 0 {
			t.Fatalf("pixel right of the outline at y=%d is %#08x, want 0", y, got)
		}
	}
	if got := at(23, 16); got != 0xff0000ff {
		t.Fatalf("pixel left of the outline is %#08x, want 0xff0000ff", got)
	}
}

func TestFineCentroidPerPixel(t *testing.T) {
	// The square covers the left 4.5 columns; the covered region, and with
	// it the centroid, differs from pixel to pixel within the bin.
	p := squareScene(0, 0, 4.5, 8, 32, 32)
	p.coarse([3]uint32{1, 1, 1})

	faces := p.faceRecords()
	head := p.heads()[0]
	if head == 0 {
		t.Fatal("bin 0 has no face")
	}
	var vm program.VM
	pf := prepareFace(&faces[head-1], safeish.SliceCast[[]renderer.EdgeRecord](p.clipped), p.programs, &vm)

	tests := []struct {
		px, py uint32
		want   [2]float32
	}{
		{0, 0, [2]float32{0.5, 0.5}},   // fully covered
		{4, 0, [2]float32{4.25, 0.5}},  // left half of [4,4.5] covered
		{4, 7, [2]float32{4.25, 7.5}},  // same column, lower row
		{9, 0, [2]float32{9.5, 0.5}},   // uncovered, falls back to the center
	}
	for _, tt := range tests {
		got := pf.pixelCentroid(tt.px, tt.py)
		if abs32(got[0]-tt.want[0]) > 1e-4 || abs32(got[1]-tt.want[1]) > 1e-4 {
			t.Errorf("centroid of pixel (%d,%d) is %v, want %v", tt.px, tt.py, got, tt.want)
		}
	}

	full := preparedFace{rec: &renderer.FaceRecord{}, fullArea: true}
	if got := full.pixelCentroid(7, 3); got != [2]float32{7.5, 3.5} {
		t.Errorf("full-area centroid is %v, want pixel center", got)
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestFineNegativeWindingInvisible(t *testing.T) {
	// Reversing the outline flips the sign of every area term and winding
	// count. Both coverage paths treat such a shape as empty.
	edges := squareEdges(8, 8, 24, 24)
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	for i, e := range edges {
		edges[i] = renderer.EdgeRecord{X0: e.X1, Y0: e.Y1, X1: e.X0, Y1: e.Y0}
	}

	for _, filter := range []renderer.FilterKind{renderer.FilterBox, renderer.FilterBilinear} {
		programs, offset := solidProgram(gfx.LinearRGBA(1, 0, 0, 1))
		cfg := renderer.ConfigUniform{
			TargetWidth:  32,
			TargetHeight: 32,
			WidthInBins:  2,
			HeightInBins: 2,
			NumShapes:    1,
			Filter:       uint32(filter),
			FilterScale:  1,
			FacesSize:    64,
			EdgesSize:    1024,
		}
		shapes := []renderer.ShapeRecord{{
			ProgramOffset: offset,
			Flags:         renderer.PackFlags(0, renderer.PlainOver),
			EdgeIdx:       0,
			EdgeCount:     4,
			Bbox:          [4]float32{8, 8, 24, 24},
		}}
		p := newPipeline(cfg, shapes, edges, programs)
		p.coarse([3]uint32{1, 1, 1})
		p.fine([3]uint32{2, 2, 1})

		for i, px := range p.tex.Pixels {
			if px != 0 {
				t.Fatalf("filter %d: pixel %d of a reversed outline is %#08x, want 0", filter, i, px)
			}
		}
	}
}

func TestFineFailedRunLeavesTarget(t *testing.T) {
	p := squareScene(8, 8, 24, 24, 32, 32)
	p.config.FacesSize = 2
	p.coarse([3]uint32{1, 1, 1})
	p.fine([3]uint32{2, 2, 1})

	for i, px := range p.tex.Pixels {
		if px != 0 {
			t.Fatalf("pixel %d written by failed run: %#08x", i, px)
		}
	}
}
