// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package aspic is a 2D renderer built around tree-shaped shading
// programs. Scenes are lists of closed outlines, each shaded by a
// program that is compiled to bytecode and evaluated per pixel; a tiled
// two-pass rasterizer clips outlines into per-bin faces and composites
// them with exact signed-area coverage.
//
// The root package is a convenience facade. The building blocks live in
// the subpackages: program for the shading trees and their compiler and
// VM, geom for the edge geometry, renderer for scene resolution and the
// render pipeline, engine/wgpu_engine for execution.
package aspic

import (
	"image"

	"honnef.co/go/aspic/engine/wgpu_engine"
	"honnef.co/go/aspic/renderer"
	"honnef.co/go/wgpu"
)

type RendererOptions = wgpu_engine.RendererOptions

type RenderParams = renderer.RenderParams

// Renderer renders scenes on a wgpu device, or on the CPU when created
// with UseCPU (the device may then be nil).
type Renderer struct {
	engine *wgpu_engine.Engine
}

func NewRenderer(dev *wgpu.Device, options *RendererOptions) *Renderer {
	return &Renderer{
		engine: wgpu_engine.New(dev, options),
	}
}

// RenderToTexture renders the scene into the given texture view.
func (r *Renderer) RenderToTexture(
	queue *wgpu.Queue,
	scene *Scene,
	texture *wgpu.TextureView,
	params *RenderParams,
) error {
	return r.engine.RenderToTexture(queue, &scene.Scene, texture, params)
}

// RenderToSurface renders the scene and blits it onto the surface.
func (r *Renderer) RenderToSurface(
	queue *wgpu.Queue,
	scene *Scene,
	surface *wgpu.SurfaceTexture,
	params *RenderParams,
) error {
	return r.engine.RenderToSurface(queue, &scene.Scene, surface, params)
}

// RenderToRGBA renders the scene with the CPU kernels and returns the
// resulting image, with premultiplied alpha. The renderer must have been
// created with UseCPU.
func (r *Renderer) RenderToRGBA(scene *Scene, params *RenderParams) (*image.RGBA, error) {
	tex, err := r.engine.RenderToCPU(&scene.Scene, params)
	if tex == nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, tex.Width, tex.Height))
	for i, px := range tex.Pixels {
		img.Pix[i*4+0] = uint8(px)
		img.Pix[i*4+1] = uint8(px >> 8)
		img.Pix[i*4+2] = uint8(px >> 16)
		img.Pix[i*4+3] = uint8(px >> 24)
	}
	return img, err
}
