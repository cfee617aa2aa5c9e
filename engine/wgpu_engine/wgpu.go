// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

// OPT reuse bind groups

import (
	"fmt"
	"math"
	"math/bits"

	"honnef.co/go/aspic/engine/wgpu_engine/shaders/cpu"
	"honnef.co/go/aspic/renderer"
	"honnef.co/go/wgpu"
)

// Engine executes recordings produced by the renderer package, either on
// a wgpu device or with the CPU kernels. With UseCPU set the Device may
// be nil; recordings then run entirely in memory.
type Engine struct {
	Device    *wgpu.Device
	shaders   []shader
	pool      resourcePool
	downloads map[renderer.ResourceID]*wgpu.Buffer
	// cpuDownloads and cpuImages hold the results of CPU runs past the
	// end of the recording, keyed like their GPU counterparts.
	cpuDownloads map[renderer.ResourceID][]byte
	cpuImages    map[renderer.ResourceID]*cpu.CPUTexture
	UseCPU       bool

	resolver    *renderer.Resolver
	blit        *blitPipeline
	fullShaders *renderer.FullShaders
	target      *targetTexture
}

type wgpuShader struct {
	label           string
	pipeline        *wgpu.ComputePipeline
	bindGroupLayout *wgpu.BindGroupLayout
}

type cpuShader struct {
	kernel func(groups [3]uint32, resources []cpu.CPUBinding)
}

type shader struct {
	Label string
	WGPU  *wgpuShader
	CPU   *cpuShader
}

func (s shader) Select() any {
	if s.CPU != nil {
		return s.CPU
	} else if s.WGPU != nil {
		return s.WGPU
	} else {
		panic(fmt.Sprintf("no available shader for %s", s.Label))
	}
}

type ExternalResource interface {
	// One of ExternalBuffer and ExternalImage
}

type ExternalBuffer struct {
	Proxy  renderer.BufferProxy
	Buffer *wgpu.Buffer
}

type ExternalImage struct {
	Proxy renderer.ImageProxy
	View  *wgpu.TextureView
}

type materializedBuffer interface {
	// One of wgpu.Buffer and []byte
}

type bindMapBuffer struct {
	Buffer materializedBuffer
	Label  string
}

type bindMapImage struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

type bindMap struct {
	bufMap        map[renderer.ResourceID]*bindMapBuffer
	imageMap      map[renderer.ResourceID]*bindMapImage
	pendingClears map[renderer.ResourceID]struct{}
}

func newBindMap() bindMap {
	return bindMap{
		bufMap:        make(map[renderer.ResourceID]*bindMapBuffer),
		imageMap:      make(map[renderer.ResourceID]*bindMapImage),
		pendingClears: make(map[renderer.ResourceID]struct{}),
	}
}

type bufferProperties struct {
	size   uint64
	usages wgpu.BufferUsage
}

type resourcePool struct {
	bufs map[bufferProperties][]*wgpu.Buffer
}

type transientBindMap struct {
	bufs   map[renderer.ResourceID]transientBuf
	images map[renderer.ResourceID]*wgpu.TextureView
}

type transientBufKind int

const (
	transientBufKindBytes transientBufKind = iota + 1
	transientBufKindBuffer
)

type transientBuf struct {
	kind   transientBufKind
	bytes  []byte
	buffer *wgpu.Buffer
}

func New(dev *wgpu.Device, options *RendererOptions) *Engine {
	eng := &Engine{
		Device: dev,
		pool: resourcePool{
			bufs: make(map[bufferProperties][]*wgpu.Buffer),
		},
		downloads:    make(map[renderer.ResourceID]*wgpu.Buffer),
		cpuDownloads: make(map[renderer.ResourceID][]byte),
		cpuImages:    make(map[renderer.ResourceID]*cpu.CPUTexture),
		UseCPU:       options.UseCPU,

		resolver: renderer.NewResolver(),
	}
	eng.fullShaders = eng.newFullShaders()
	if dev != nil {
		eng.blit = newBlitPipeline(dev, options.SurfaceFormat)
	}
	return eng
}

func (eng *Engine) addShader(
	label string,
	wgsl []byte,
	layout []renderer.BindType,
	kernel func([3]uint32, []cpu.CPUBinding),
) renderer.ShaderID {
	add := func(shader shader) renderer.ShaderID {
		id := len(eng.shaders)
		eng.shaders = append(eng.shaders, shader)
		return renderer.ShaderID(id)
	}

	if eng.UseCPU {
		if kernel == nil {
			panic(fmt.Sprintf("no CPU kernel for %s", label))
		}
		return add(shader{
			Label: label,
			CPU:   &cpuShader{kernel: kernel},
		})
	}

	entries := make([]wgpu.BindGroupLayoutEntry, len(layout))
	for i, bindType := range layout {
		switch bindType.Type {
		case renderer.BindTypeBuffer, renderer.BindTypeBufReadOnly:
			var typ wgpu.BufferBindingType
			if bindType.Type == renderer.BindTypeBuffer {
				typ = wgpu.BufferBindingTypeStorage
			} else {
				typ = wgpu.BufferBindingTypeReadOnlyStorage
			}
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    uint32(i),
				Visibility: wgpu.ShaderStageCompute,
				Buffer: &wgpu.BufferBindingLayout{
					Type:             typ,
					HasDynamicOffset: false,
					MinBindingSize:   0,
				},
			}
		case renderer.BindTypeUniform:
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    uint32(i),
				Visibility: wgpu.ShaderStageCompute,
				Buffer: &wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: false,
					MinBindingSize:   0,
				},
			}

		case renderer.BindTypeImage:
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    uint32(i),
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: &wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        imageFormatToWGPU(bindType.ImageFormat),
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			}

		default:
			panic(fmt.Sprintf("invalid bind type %d", bindType.Type))
		}
	}

	sh := eng.createComputePipeline(label, wgsl, entries)
	return add(shader{
		Label: label,
		WGPU:  &sh,
	})
}

func (eng *Engine) RunRecording(
	queue *wgpu.Queue,
	recording *renderer.Recording,
	externalResources []ExternalResource,
	label string,
) {
	if eng.UseCPU {
		eng.runRecordingCPU(recording, externalResources)
		return
	}
	eng.runRecordingGPU(queue, recording, externalResources, label)
}

// runRecordingCPU executes the recording with the CPU kernels. Buffers
// are plain byte slices; uploads alias the recording's data, everything
// else is materialized zeroed on first use.
func (eng *Engine) runRecordingCPU(recording *renderer.Recording, externalResources []ExternalResource) {
	if len(externalResources) > 0 {
		panic("external resources require a GPU device")
	}

	bufs := make(map[renderer.ResourceID][]byte)
	materialize := func(proxy renderer.BufferProxy) []byte {
		buf, ok := bufs[proxy.ID]
		if !ok {
			buf = make([]byte, proxy.Size)
			bufs[proxy.ID] = buf
		}
		return buf
	}
	materializeImage := func(proxy renderer.ImageProxy) *cpu.CPUTexture {
		tex, ok := eng.cpuImages[proxy.ID]
		if !ok {
			tex = &cpu.CPUTexture{
				Width:  int(proxy.Width),
				Height: int(proxy.Height),
				Pixels: make([]uint32, proxy.Width*proxy.Height),
			}
			eng.cpuImages[proxy.ID] = tex
		}
		return tex
	}

	for _, cmd := range recording.Commands {
		switch cmd := cmd.(type) {
		case *renderer.Upload:
			bufs[cmd.Buffer.ID] = cmd.Data

		case *renderer.UploadUniform:
			bufs[cmd.Buffer.ID] = cmd.Data

		case *renderer.Clear:
			buf := materialize(cmd.Buffer)
			slice := buf[cmd.Offset:]
			if cmd.Size >= 0 {
				slice = slice[:cmd.Size]
			}
			clear(slice)

		case *renderer.Dispatch:
			sh := eng.shaders[cmd.Shader]
			s, ok := sh.Select().(*cpuShader)
			if !ok {
				panic(fmt.Sprintf("no CPU kernel for %s", sh.Label))
			}
			bindings := make([]cpu.CPUBinding, len(cmd.Bindings))
			for i, proxy := range cmd.Bindings {
				switch proxy.Kind {
				case renderer.ResourceProxyKindBuffer:
					bindings[i] = cpu.CPUBuffer(materialize(proxy.BufferProxy))
				case renderer.ResourceProxyKindImage:
					bindings[i] = materializeImage(proxy.ImageProxy)
				default:
					panic(fmt.Sprintf("unhandled kind %d", proxy.Kind))
				}
			}
			s.kernel(cmd.WorkgroupSize, bindings)

		case *renderer.Download:
			buf, ok := bufs[cmd.Buffer.ID]
			if !ok {
				panic("tried using unavailable buffer for download")
			}
			eng.cpuDownloads[cmd.Buffer.ID] = buf

		case *renderer.FreeBuffer:
			delete(bufs, cmd.Buffer.ID)

		case *renderer.FreeImage:
			delete(eng.cpuImages, cmd.Image.ID)

		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
	}
}

func (eng *Engine) runRecordingGPU(
	queue *wgpu.Queue,
	recording *renderer.Recording,
	externalResources []ExternalResource,
	label string,
) {
	freeBufs := make(map[renderer.ResourceID]struct{})
	freeImages := make(map[renderer.ResourceID]struct{})
	transientMap := newTransientBindMap(externalResources)
	bindMap := newBindMap()

	encoder := eng.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})

	for _, cmd := range recording.Commands {
		switch cmd := cmd.(type) {
		case *renderer.Upload:
			bufProxy := cmd.Buffer
			bytes := cmd.Data
			transientMap.bufs[bufProxy.ID] = transientBuf{kind: transientBufKindBytes, bytes: bytes}
			usage := wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst | wgpu.BufferUsageStorage
			buf := eng.pool.getBuf(bufProxy.Size, bufProxy.Name, usage, eng.Device)
			queue.WriteBuffer(buf, 0, bytes)
			bindMap.insertBuf(bufProxy, buf)

		case *renderer.UploadUniform:
			bufProxy := cmd.Buffer
			bytes := cmd.Data
			transientMap.bufs[bufProxy.ID] = transientBuf{kind: transientBufKindBytes, bytes: bytes}
			usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
			buf := eng.pool.getBuf(bufProxy.Size, bufProxy.Name, usage, eng.Device)
			queue.WriteBuffer(buf, 0, bytes)
			bindMap.insertBuf(bufProxy, buf)

		case *renderer.Dispatch:
			shader := eng.shaders[cmd.Shader]
			s, ok := shader.Select().(*wgpuShader)
			if !ok {
				panic(fmt.Sprintf("no GPU pipeline for %s", shader.Label))
			}
			bindGroup := transientMap.createBindGroup(
				&bindMap,
				&eng.pool,
				eng.Device,
				queue,
				encoder,
				s.bindGroupLayout,
				cmd.Bindings,
			)

			cpass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{
				Label: shader.Label,
			})

			cpass.SetPipeline(s.pipeline)
			cpass.SetBindGroup(0, bindGroup, nil)
			cpass.DispatchWorkgroups(cmd.WorkgroupSize[0], cmd.WorkgroupSize[1], cmd.WorkgroupSize[2])
			cpass.End()
			bindGroup.Release()
			cpass.Release()

		case *renderer.Download:
			proxy := cmd.Buffer
			srcBuf, ok := bindMap.getGPUBuf(proxy.ID)
			if !ok {
				panic("tried using unavailable buffer for download")
			}
			usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
			buf := eng.pool.getBuf(proxy.Size, "download", usage, eng.Device)
			encoder.CopyBufferToBuffer(srcBuf, 0, buf, 0, proxy.Size)
			eng.downloads[proxy.ID] = buf

		case *renderer.Clear:
			proxy := cmd.Buffer
			if buf, ok := bindMap.getBuf(proxy); ok {
				switch b := buf.Buffer.(type) {
				case *wgpu.Buffer:
					encoder.ClearBuffer(b, cmd.Offset, uint64(cmd.Size))
				case []byte:
					slice := b[cmd.Offset:]
					if cmd.Size >= 0 {
						slice = slice[:cmd.Size]
					}
					clear(slice)
				default:
					panic(fmt.Sprintf("unhandled type %T", b))
				}
			} else {
				bindMap.pendingClears[proxy.ID] = struct{}{}
			}

		case *renderer.FreeBuffer:
			freeBufs[cmd.Buffer.ID] = struct{}{}

		case *renderer.FreeImage:
			freeImages[cmd.Image.ID] = struct{}{}

		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
	}

	cmd := encoder.Finish(nil)
	encoder.Release()
	queue.Submit(cmd)
	cmd.Release()

	for id := range freeBufs {
		buf, ok := bindMap.bufMap[id]
		if ok {
			delete(bindMap.bufMap, id)
			if gpuBuf, ok := buf.Buffer.(*wgpu.Buffer); ok {
				props := bufferProperties{
					size:   gpuBuf.Size(),
					usages: gpuBuf.Usage(),
				}
				eng.pool.bufs[props] = append(eng.pool.bufs[props], gpuBuf)
			}
		}
	}
	for id := range freeImages {
		tex, ok := bindMap.imageMap[id]
		if ok {
			delete(bindMap.imageMap, id)
			// TODO: have a pool to avoid needless re-allocation
			tex.texture.Release()
			tex.view.Release()
		}
	}
}

// ReadDownload synchronously reads back a buffer that the recording
// downloaded. The buffer stays available until FreeDownload.
func (eng *Engine) ReadDownload(buf renderer.BufferProxy) ([]byte, bool) {
	if eng.UseCPU {
		got, ok := eng.cpuDownloads[buf.ID]
		return got, ok
	}
	got, ok := eng.downloads[buf.ID]
	if !ok {
		return nil, false
	}
	if err := <-got.Map(eng.Device, wgpu.MapModeRead, 0, int(buf.Size)); err != nil {
		panic(err)
	}
	data := make([]byte, buf.Size)
	copy(data, got.ReadOnlyMappedRange(0, int(buf.Size)))
	got.Unmap()
	return data, true
}

func (eng *Engine) FreeDownload(buf renderer.BufferProxy) {
	if eng.UseCPU {
		delete(eng.cpuDownloads, buf.ID)
		return
	}
	delete(eng.downloads, buf.ID)
}

// CPUImage returns the pixels of an image a CPU run rendered into.
func (eng *Engine) CPUImage(image renderer.ImageProxy) (*cpu.CPUTexture, bool) {
	tex, ok := eng.cpuImages[image.ID]
	return tex, ok
}

func (eng *Engine) createComputePipeline(
	label string,
	wgsl []byte,
	entries []wgpu.BindGroupLayoutEntry,
) wgpuShader {
	// OPT(dh): use SPIR-V instead of WGSL for faster engine creation.
	shaderModule := eng.Device.CreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  label,
		Source: wgpu.ShaderSourceWGSL(wgsl),
	})
	bindGroupLayout := eng.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: entries,
	})
	computePipelineLayout := eng.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindGroupLayout},
	})
	pipeline := eng.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: computePipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shaderModule,
			EntryPoint: "main",
		},
	})
	computePipelineLayout.Release()

	return wgpuShader{
		label:           label,
		pipeline:        pipeline,
		bindGroupLayout: bindGroupLayout,
	}
}

func (m *bindMap) insertBuf(proxy renderer.BufferProxy, buffer *wgpu.Buffer) {
	m.bufMap[proxy.ID] = &bindMapBuffer{
		Buffer: buffer,
		Label:  proxy.Name,
	}
}

func (m *bindMap) getGPUBuf(id renderer.ResourceID) (*wgpu.Buffer, bool) {
	mbuf, ok := m.bufMap[id]
	if !ok {
		return nil, false
	}
	buf, ok := mbuf.Buffer.(*wgpu.Buffer)
	return buf, ok
}

func (m *bindMap) getBuf(proxy renderer.BufferProxy) (*bindMapBuffer, bool) {
	b, ok := m.bufMap[proxy.ID]
	return b, ok
}

func (pool *resourcePool) getBuf(
	size uint64,
	name string,
	usage wgpu.BufferUsage,
	dev *wgpu.Device,
) *wgpu.Buffer {
	const sizeClassBits = 1

	roundedSize := poolSizeClass(size, sizeClassBits)
	props := bufferProperties{
		size:   roundedSize,
		usages: usage,
	}
	if bufVec, ok := pool.bufs[props]; ok {
		if len(bufVec) > 0 {
			buf := bufVec[len(bufVec)-1]
			bufVec = bufVec[:len(bufVec)-1]
			pool.bufs[props] = bufVec
			return buf
		}
	}
	return dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  roundedSize,
		Usage: usage,
	})
}

func poolSizeClass(x uint64, numBits uint32) uint64 {
	if x > 1<<numBits {
		a := bits.LeadingZeros64(x - 1)
		b := (x - 1) | (((math.MaxUint64 / 2) >> numBits) >> a)
		return b + 1
	} else {
		return 1 << numBits
	}
}

func (b *bindMapBuffer) uploadIfNeeded(
	proxy renderer.BufferProxy,
	dev *wgpu.Device,
	queue *wgpu.Queue,
	pool *resourcePool,
) {
	cpuBuf, ok := b.Buffer.([]byte)
	if !ok {
		return
	}
	usage := wgpu.BufferUsageCopySrc |
		wgpu.BufferUsageCopyDst |
		wgpu.BufferUsageStorage
	buf := pool.getBuf(proxy.Size, proxy.Name, usage, dev)
	queue.WriteBuffer(buf, 0, cpuBuf)
	b.Buffer = buf
}

func newTransientBindMap(externalResources []ExternalResource) transientBindMap {
	bufs := make(map[renderer.ResourceID]transientBuf)
	images := make(map[renderer.ResourceID]*wgpu.TextureView)
	for _, res := range externalResources {
		switch res := res.(type) {
		case ExternalBuffer:
			bufs[res.Proxy.ID] = transientBuf{kind: transientBufKindBuffer, buffer: res.Buffer}
		case ExternalImage:
			images[res.Proxy.ID] = res.View
		}
	}
	return transientBindMap{
		bufs:   bufs,
		images: images,
	}
}

func (m *transientBindMap) createBindGroup(
	bindMap *bindMap,
	pool *resourcePool,
	dev *wgpu.Device,
	queue *wgpu.Queue,
	encoder *wgpu.CommandEncoder,
	layout *wgpu.BindGroupLayout,
	bindings []renderer.ResourceProxy,
) *wgpu.BindGroup {
	for _, proxy := range bindings {
		switch proxy.Kind {
		case renderer.ResourceProxyKindBuffer:
			if _, ok := m.bufs[proxy.BufferProxy.ID]; ok {
				continue
			}
			if o, ok := bindMap.bufMap[proxy.BufferProxy.ID]; ok {
				o.uploadIfNeeded(proxy.BufferProxy, dev, queue, pool)
			} else {
				usage := wgpu.BufferUsageCopySrc |
					wgpu.BufferUsageCopyDst |
					wgpu.BufferUsageStorage
				buf := pool.getBuf(proxy.Size, proxy.Name, usage, dev)
				if _, ok := bindMap.pendingClears[proxy.BufferProxy.ID]; ok {
					delete(bindMap.pendingClears, proxy.BufferProxy.ID)
					encoder.ClearBuffer(buf, 0, buf.Size())
				}
				bindMap.bufMap[proxy.BufferProxy.ID] = &bindMapBuffer{
					Buffer: buf,
					Label:  proxy.Name,
				}
			}
		case renderer.ResourceProxyKindImage:
			if _, ok := m.images[proxy.ImageProxy.ID]; ok {
				continue
			}
			if _, ok := bindMap.imageMap[proxy.ImageProxy.ID]; ok {
				continue
			}
			format := imageFormatToWGPU(proxy.Format)
			texture := dev.CreateTexture(&wgpu.TextureDescriptor{
				Size: wgpu.Extent3D{
					Width:              proxy.Width,
					Height:             proxy.Height,
					DepthOrArrayLayers: 1,
				},
				MipLevelCount: 1,
				SampleCount:   1,
				Dimension:     wgpu.TextureDimension2D,
				Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageStorageBinding,
				Format:        format,
			})
			textureView := texture.CreateView(&wgpu.TextureViewDescriptor{
				Dimension:       wgpu.TextureViewDimension2D,
				Aspect:          wgpu.TextureAspectAll,
				MipLevelCount:   ^uint32(0),
				BaseMipLevel:    0,
				BaseArrayLayer:  0,
				ArrayLayerCount: ^uint32(0),
				Format:          format,
			})
			bindMap.imageMap[proxy.ImageProxy.ID] = &bindMapImage{
				texture, textureView,
			}
		default:
			panic(fmt.Sprintf("unhandled type %d", proxy.Kind))
		}
	}

	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, proxy := range bindings {
		switch proxy.Kind {
		case renderer.ResourceProxyKindBuffer:
			var buf *wgpu.Buffer
			b := m.bufs[proxy.BufferProxy.ID]
			switch b.kind {
			case transientBufKindBuffer:
				buf = b.buffer
			default:
				var ok bool
				buf, ok = bindMap.getGPUBuf(proxy.BufferProxy.ID)
				if !ok {
					panic("unexpected ok == false")
				}
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: uint32(i),
				Buffer:  buf,
				Size:    ^uint64(0),
			}
		case renderer.ResourceProxyKindImage:
			view, ok := m.images[proxy.ImageProxy.ID]
			if !ok {
				img, ok := bindMap.imageMap[proxy.ImageProxy.ID]
				if !ok {
					panic("unexpected ok == false")
				}
				view = img.view
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding:     uint32(i),
				TextureView: view,
				Size:        ^uint64(0),
			}
		default:
			panic(fmt.Sprintf("unhandled type %T", proxy))
		}
	}

	return dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
}
