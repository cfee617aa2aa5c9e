// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package wgpu_engine executes render recordings on a wgpu device, or on
// the CPU with the kernels from the shaders/cpu package.
package wgpu_engine

import (
	"fmt"
	"reflect"

	"honnef.co/go/aspic/engine/wgpu_engine/shaders"
	"honnef.co/go/aspic/engine/wgpu_engine/shaders/cpu"
	"honnef.co/go/aspic/renderer"
	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"
)

type RendererOptions struct {
	SurfaceFormat wgpu.TextureFormat
	UseCPU        bool
}

var bindTypeMapping = [...]renderer.BindType{
	shaders.Buffer:      {Type: renderer.BindTypeBuffer},
	shaders.BufReadOnly: {Type: renderer.BindTypeBufReadOnly},
	shaders.Uniform:     {Type: renderer.BindTypeUniform},
	shaders.Image:       {Type: renderer.BindTypeImage, ImageFormat: renderer.Rgba8},
}

var cpuKernels = map[string]func([3]uint32, []cpu.CPUBinding){
	"Coarse": cpu.Coarse,
	"Fine":   cpu.Fine,
}

func (eng *Engine) newFullShaders() *renderer.FullShaders {
	var out renderer.FullShaders
	outV := reflect.ValueOf(&out).Elem()
	v := reflect.ValueOf(&shaders.Collection)
	for i := range v.Elem().NumField() {
		fieldName := v.Elem().Type().Field(i).Name
		outField := outV.FieldByName(fieldName)
		if !outField.IsValid() {
			continue
		}
		shader := v.Elem().Field(i).Addr().Interface().(*shaders.ComputeShader)
		bindings := make([]renderer.BindType, len(shader.Bindings))
		for i, b := range shader.Bindings {
			bindings[i] = bindTypeMapping[b]
		}
		if !eng.UseCPU && len(shader.WGSL.Code) == 0 {
			panic(fmt.Sprintf("shader %q has no code", shader.Name))
		}
		id := eng.addShader(shader.Name, shader.WGSL.Code, bindings, cpuKernels[fieldName])
		outField.Set(reflect.ValueOf(id))
	}
	return &out
}

// AllocError reports that the bump allocators of a render ran out of
// capacity and parts of the scene were dropped. The counters carry how
// much space the render wanted.
type AllocError struct {
	Failed uint32
	Faces  uint32
	Edges  uint32
}

func (err *AllocError) Error() string {
	return fmt.Sprintf(
		"bump allocation failed (flags %#x): wanted %d faces, %d edges",
		err.Failed, err.Faces, err.Edges)
}

// checkBump reads back the downloaded bump allocator record and turns
// overflow into an error.
func (eng *Engine) checkBump(buf renderer.BufferProxy) error {
	data, ok := eng.ReadDownload(buf)
	if !ok {
		return nil
	}
	defer eng.FreeDownload(buf)
	bump := safeish.SliceCast[[]renderer.BumpAllocators](data)[0]
	if bump.Failed != 0 {
		return &AllocError{Failed: bump.Failed, Faces: bump.Faces, Edges: bump.Edges}
	}
	return nil
}

// RenderToTexture renders the scene into the given texture view.
func (eng *Engine) RenderToTexture(
	queue *wgpu.Queue,
	scene *renderer.Scene,
	texture *wgpu.TextureView,
	params *renderer.RenderParams,
) error {
	recording, target := renderer.Render(eng.resolver, scene, eng.fullShaders, params)

	externalResources := []ExternalResource{
		ExternalImage{
			Proxy: target.Image,
			View:  texture,
		},
	}
	eng.RunRecording(queue, &recording, externalResources, "render_to_texture")
	return eng.checkBump(target.Bump)
}

// RenderToCPU renders the scene with the CPU kernels and returns the
// resulting pixels. The engine must have been created with UseCPU.
func (eng *Engine) RenderToCPU(scene *renderer.Scene, params *renderer.RenderParams) (*cpu.CPUTexture, error) {
	if !eng.UseCPU {
		panic("RenderToCPU requires a CPU engine")
	}
	recording, target := renderer.Render(eng.resolver, scene, eng.fullShaders, params)
	eng.RunRecording(nil, &recording, nil, "render_to_cpu")
	err := eng.checkBump(target.Bump)
	tex, ok := eng.cpuImages[target.Image.ID]
	if !ok {
		panic("render did not produce an image")
	}
	delete(eng.cpuImages, target.Image.ID)
	return tex, err
}

type blitPipeline struct {
	BindLayout *wgpu.BindGroupLayout
	Pipeline   *wgpu.RenderPipeline
}

func newBlitPipeline(dev *wgpu.Device, format wgpu.TextureFormat) *blitPipeline {
	const src = `
			@vertex
			fn vs_main(@builtin(vertex_index) ix: u32) -> @builtin(position) vec4<f32> {
				// Generate a full screen quad in normalized device coordinates
				var vertex = vec2(-1.0, 1.0);
				switch ix {
					case 1u: {
						vertex = vec2(-1.0, -1.0);
					}
					case 2u, 4u: {
						vertex = vec2(1.0, -1.0);
					}
					case 5u: {
						vertex = vec2(1.0, 1.0);
					}
					default: {}
				}
				return vec4(vertex, 0.0, 1.0);
			}

			@group(0) @binding(0)
			var fine_output: texture_2d<f32>;

			@fragment
			fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
				let rgba = textureLoad(fine_output, vec2<i32>(pos.xy), 0);
				return rgba;
			}`

	shader := dev.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  "blit shaders",
		Source: wgpu.ShaderSourceWGSL(src),
	})
	bindLayout := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Visibility: wgpu.ShaderStageFragment,
				Binding:    0,
				Texture: &wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
		},
	})
	pipelineLayout := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "blit pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindLayout},
	})
	pipeline := dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "blit pipeline",
		Layout: pipelineLayout,
		Vertex: &wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: &wgpu.PrimitiveState{
			Topology:         wgpu.PrimitiveTopologyTriangleList,
			StripIndexFormat: ^wgpu.IndexFormat(0),
			FrontFace:        wgpu.FrontFaceCCW,
			CullMode:         wgpu.CullModeBack,
		},
		Multisample: &wgpu.MultisampleState{
			Count:                  1,
			Mask:                   ^uint32(0),
			AlphaToCoverageEnabled: false,
		},
	})
	return &blitPipeline{
		BindLayout: bindLayout,
		Pipeline:   pipeline,
	}
}

type targetTexture struct {
	View   *wgpu.TextureView
	Width  uint32
	Height uint32
}

func newTargetTexture(dev *wgpu.Device, width, height uint32) *targetTexture {
	tex := dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: "target texture",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
		Format:        wgpu.TextureFormatRGBA8Unorm,
	})
	defer tex.Release()
	view := tex.CreateView(nil)
	return &targetTexture{
		View:   view,
		Width:  width,
		Height: height,
	}
}

func imageFormatToWGPU(f renderer.ImageFormat) wgpu.TextureFormat {
	switch f {
	case renderer.Rgba8:
		return wgpu.TextureFormatRGBA8Unorm
	case renderer.Bgra8:
		return wgpu.TextureFormatBGRA8Unorm
	default:
		panic(fmt.Sprintf("unhandled value %d", f))
	}
}

// RenderToSurface renders the scene into an intermediate texture and
// blits it onto the surface.
func (eng *Engine) RenderToSurface(
	queue *wgpu.Queue,
	scene *renderer.Scene,
	surface *wgpu.SurfaceTexture,
	params *renderer.RenderParams,
) error {
	width := params.Width
	height := params.Height
	if eng.target == nil {
		eng.target = newTargetTexture(eng.Device, width, height)
	} else if eng.target.Width != width || eng.target.Height != height {
		eng.target.View.Release()
		eng.target = newTargetTexture(eng.Device, width, height)
	}

	err := eng.RenderToTexture(queue, scene, eng.target.View, params)
	if err != nil {
		return err
	}

	surfaceView := surface.Texture.CreateView(nil)
	defer surfaceView.Release()

	bindGroup := eng.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: eng.blit.BindLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding:     0,
				TextureView: eng.target.View,
			},
		},
	})
	defer bindGroup.Release()

	encoder := eng.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "blitter"})
	defer encoder.Release()
	renderPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       surfaceView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 255},
			},
		},
	})
	defer renderPass.Release()

	renderPass.SetPipeline(eng.blit.Pipeline)
	renderPass.SetBindGroup(0, bindGroup, nil)
	renderPass.Draw(6, 1, 0, 0)
	renderPass.End()

	cmd := encoder.Finish(nil)
	defer cmd.Release()
	queue.Submit(cmd)

	return nil
}
