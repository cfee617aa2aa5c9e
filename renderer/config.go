// Copyright 2023 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"structs"
	"unsafe"

	"honnef.co/go/aspic/gfx"
	"honnef.co/go/aspic/jmath"
)

type WorkgroupSize [3]uint32

// Raster tiling dimensions. A bin is the unit of fine-pass work, one
// workgroup of 256 threads covering 16x16 pixels. A tile is the unit of
// coarse-pass work, one workgroup of 256 threads covering 16x16 bins.
const (
	BinDim  = 16
	TileDim = 16
)

// FilterKind selects the coverage reconstruction filter of the fine pass.
type FilterKind uint32

const (
	// FilterBox integrates coverage analytically over each pixel.
	FilterBox FilterKind = iota
	// FilterBilinear weights a sub-sample grid with a unit tent.
	FilterBilinear
	// FilterMitchell weights a sub-sample grid with the
	// Mitchell-Netravali kernel.
	FilterMitchell
)

// Radius is the filter's support radius in pixels at scale one. The
// coarse pass expands bin bounds by the scaled radius so that every
// sample the fine pass takes falls inside the clipped geometry.
func (k FilterKind) Radius() float32 {
	switch k {
	case FilterBox:
		return 0
	case FilterBilinear:
		return 1
	case FilterMitchell:
		return 2
	default:
		panic("unknown filter kind")
	}
}

// RenderParams configures one render.
type RenderParams struct {
	// BaseColor fills the target below all shapes.
	BaseColor gfx.Color
	Width     uint32
	Height    uint32
	// Filter and FilterScale select coverage reconstruction. A zero
	// FilterScale means one.
	Filter      FilterKind
	FilterScale float32
	// TargetSpace is the color space pixels are converted to before
	// they are packed into the output image.
	TargetSpace gfx.Space
}

func (p *RenderParams) filterScale() float32 {
	if p.FilterScale == 0 {
		return 1
	}
	return p.FilterScale
}

// ConfigUniform contains uniform render configuration, bound as the
// first resource of the coarse and fine kernels in
// engine/wgpu_engine/shaders/cpu.
type ConfigUniform struct {
	_ structs.HostLayout

	// Width of the target in pixels.
	TargetWidth uint32
	// Height of the target in pixels.
	TargetHeight uint32
	// Width of the scene in bins.
	WidthInBins uint32
	// Height of the scene in bins.
	HeightInBins uint32
	// Number of shapes in the scene.
	NumShapes uint32
	// The base background color applied to the target before any
	// shapes, premultiplied RGBA8.
	BaseColor uint32
	// Coverage reconstruction filter kind and scale.
	Filter      uint32
	FilterScale float32
	// Color space tag of the output image.
	TargetSpace uint32
	// Capacity of the face record allocation (in [FaceRecord]s).
	FacesSize uint32
	// Capacity of the clipped edge allocation (in [EdgeRecord]s).
	EdgesSize uint32
}

// BumpAllocators is the pair of global bump allocation counters shared by
// all coarse workgroups, plus the failure flags. It must stay in sync
// with the kernels.
type BumpAllocators struct {
	_ structs.HostLayout

	Failed uint32
	Faces  uint32
	Edges  uint32
}

// Failure bits in BumpAllocators.Failed.
const (
	AllocFailedFaces = 1 << 0
	AllocFailedEdges = 1 << 1
)

type RenderConfig struct {
	gpu             ConfigUniform
	workgroupCounts WorkgroupCounts
	bufferSizes     BufferSizes
}

func NewRenderConfig(resolved *Resolved, params *RenderParams) *RenderConfig {
	widthInBins := (params.Width + BinDim - 1) / BinDim
	heightInBins := (params.Height + BinDim - 1) / BinDim
	workgroupCounts := NewWorkgroupCounts(widthInBins, heightInBins, uint32(len(resolved.Shapes)))
	bufferSizes := NewBufferSizes(resolved, params, widthInBins, heightInBins)
	return &RenderConfig{
		gpu: ConfigUniform{
			TargetWidth:  params.Width,
			TargetHeight: params.Height,
			WidthInBins:  widthInBins,
			HeightInBins: heightInBins,
			NumShapes:    uint32(len(resolved.Shapes)),
			BaseColor:    params.BaseColor.LinearSRGB().PremulUint32(),
			Filter:       uint32(params.Filter),
			FilterScale:  params.filterScale(),
			TargetSpace:  uint32(params.TargetSpace),
			FacesSize:    uint32(bufferSizes.Faces),
			EdgesSize:    uint32(bufferSizes.ClippedEdges),
		},
		workgroupCounts: workgroupCounts,
		bufferSizes:     bufferSizes,
	}
}

// NewBufferSizes derives the bump allocation capacities from the scene
// layout. A shape can produce at most one face per bin its expanded
// bounds overlap; each of its edges can be split across every bin row
// and column the bounds span, and clamping can synthesize up to four
// boundary runs per face.
func NewBufferSizes(resolved *Resolved, params *RenderParams, widthInBins, heightInBins uint32) BufferSizes {
	radius := params.Filter.Radius() * params.filterScale()
	var faces, clipped uint64
	for i := range resolved.Shapes {
		shape := &resolved.Shapes[i]
		bx := binsSpanned(shape.Bbox[0]-radius, shape.Bbox[2]+radius, widthInBins)
		by := binsSpanned(shape.Bbox[1]-radius, shape.Bbox[3]+radius, heightInBins)
		faces += uint64(bx) * uint64(by)
		clipped += uint64(shape.EdgeCount)*uint64(bx+by) + uint64(bx)*uint64(by)*4
	}
	return BufferSizes{
		Shapes:       NewBufferSize[ShapeRecord](uint32(len(resolved.Shapes))),
		SceneEdges:   NewBufferSize[EdgeRecord](uint32(len(resolved.Edges))),
		Programs:     NewBufferSize[uint32](uint32(len(resolved.Programs))),
		BinHeads:     NewBufferSize[uint32](widthInBins * heightInBins),
		BumpAlloc:    NewBufferSize[BumpAllocators](1),
		Faces:        NewBufferSize[FaceRecord](clampU64(faces)),
		ClippedEdges: NewBufferSize[EdgeRecord](clampU64(clipped)),
	}
}

func binsSpanned(lo, hi float32, limit uint32) uint32 {
	first := jmath.Clamp(int32(jmath.Floor32(lo/BinDim)), 0, int32(limit))
	last := jmath.Clamp(int32(jmath.Ceil32(hi/BinDim)), 0, int32(limit))
	return uint32(last - first)
}

func clampU64(x uint64) uint32 {
	if x > 1<<31 {
		return 1 << 31
	}
	return uint32(x)
}

func NewWorkgroupCounts(widthInBins, heightInBins, numShapes uint32) WorkgroupCounts {
	widthInTiles := (widthInBins + TileDim - 1) / TileDim
	heightInTiles := (heightInBins + TileDim - 1) / TileDim
	return WorkgroupCounts{
		Coarse: [3]uint32{widthInTiles, heightInTiles, numShapes},
		Fine:   [3]uint32{widthInBins, heightInBins, 1},
	}
}

type BufferSizes struct {
	// Resolved scene buffers, sized exactly.
	Shapes     BufferSize[ShapeRecord]
	SceneEdges BufferSize[EdgeRecord]
	Programs   BufferSize[uint32]
	BinHeads   BufferSize[uint32]
	BumpAlloc  BufferSize[BumpAllocators]
	// Bump allocated buffers, sized heuristically.
	Faces        BufferSize[FaceRecord]
	ClippedEdges BufferSize[EdgeRecord]
}

type WorkgroupCounts struct {
	// Coarse runs one workgroup per tile per shape.
	Coarse WorkgroupSize
	// Fine runs one workgroup per bin.
	Fine WorkgroupSize
}

type BufferSize[T any] uint32

func NewBufferSize[T any](x uint32) BufferSize[T] {
	return BufferSize[T](max(x, 1))
}

func (s BufferSize[T]) sizeInBytes() uint32 {
	return uint32(s) * uint32(unsafe.Sizeof(*new(T)))
}
