// Copyright 2022 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"honnef.co/go/safeish"
)

type FullShaders struct {
	Coarse ShaderID
	Fine   ShaderID
}

// RenderTarget identifies the resources a render leaves behind: the
// output image and the bump allocator record, which the caller downloads
// to detect capacity overflow.
type RenderTarget struct {
	Image ImageProxy
	Bump  BufferProxy
}

// Render records the full pipeline for one scene: resolve and upload the
// scene buffers, clear the handoff structures, run the coarse binning
// dispatch, then the fine dispatch writing the output image, and download
// the bump allocators.
func Render(
	resolver *Resolver,
	scene *Scene,
	shaders *FullShaders,
	params *RenderParams,
) (Recording, RenderTarget) {
	var recording Recording
	resolved := resolver.Resolve(scene, params)
	cfg := NewRenderConfig(resolved, params)
	sizes := &cfg.bufferSizes
	counts := &cfg.workgroupCounts

	configBuf := recording.UploadUniform("config", safeish.AsBytes(&cfg.gpu))
	shapesBuf := recording.Upload("shapes", safeish.SliceCast[[]byte](resolved.Shapes))
	edgesBuf := recording.Upload("sceneEdges", safeish.SliceCast[[]byte](resolved.Edges))
	programsBuf := recording.Upload("programs", safeish.SliceCast[[]byte](resolved.Programs))

	binHeadsBuf := NewBufferProxy(uint64(sizes.BinHeads.sizeInBytes()), "binHeadsBuf")
	recording.ClearAll(binHeadsBuf)
	bumpBuf := NewBufferProxy(uint64(sizes.BumpAlloc.sizeInBytes()), "bumpBuf")
	recording.ClearAll(bumpBuf)
	facesBuf := NewBufferProxy(uint64(sizes.Faces.sizeInBytes()), "facesBuf")
	clippedEdgesBuf := NewBufferProxy(uint64(sizes.ClippedEdges.sizeInBytes()), "clippedEdgesBuf")

	recording.Dispatch(
		shaders.Coarse,
		counts.Coarse,
		[]ResourceProxy{
			configBuf.Resource(),
			shapesBuf.Resource(),
			edgesBuf.Resource(),
			bumpBuf.Resource(),
			binHeadsBuf.Resource(),
			facesBuf.Resource(),
			clippedEdgesBuf.Resource(),
		},
	)

	outImage := NewImageProxy(params.Width, params.Height, Rgba8)
	recording.Dispatch(
		shaders.Fine,
		counts.Fine,
		[]ResourceProxy{
			configBuf.Resource(),
			programsBuf.Resource(),
			bumpBuf.Resource(),
			binHeadsBuf.Resource(),
			facesBuf.Resource(),
			clippedEdgesBuf.Resource(),
			outImage.Resource(),
		},
	)

	recording.Download(bumpBuf)

	recording.FreeResource(configBuf.Resource())
	recording.FreeResource(shapesBuf.Resource())
	recording.FreeResource(edgesBuf.Resource())
	recording.FreeResource(programsBuf.Resource())
	recording.FreeResource(binHeadsBuf.Resource())
	recording.FreeResource(facesBuf.Resource())
	recording.FreeResource(clippedEdgesBuf.Resource())

	return recording, RenderTarget{Image: outImage, Bump: bumpBuf}
}
