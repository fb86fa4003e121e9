package compute

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	types "github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Pipeline cache errors.
var (
	// ErrNilDevice is returned when building pipelines without a device.
	ErrNilDevice = errors.New("compute: HAL device is nil")
)

// pipeline bundles everything needed to dispatch one shader, retained so
// resources can be destroyed in reverse creation order.
type pipeline struct {
	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	handle         hal.ComputePipeline
}

// pipelineCache caches compiled compute pipelines by shader identity.
// Pipeline creation involves WGSL-to-SPIR-V compilation and driver
// validation, so each shader compiles at most once per device.
//
// Safe for concurrent use; double-check locking keeps the fast path on a
// read lock.
type pipelineCache struct {
	mu        sync.RWMutex
	device    hal.Device
	pipelines map[uint64]*pipeline

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newPipelineCache(device hal.Device) *pipelineCache {
	return &pipelineCache{
		device:    device,
		pipelines: make(map[uint64]*pipeline),
	}
}

// getOrCreate returns the cached pipeline for a shader, compiling it on
// first use.
func (c *pipelineCache) getOrCreate(label, wgsl, entryPoint string) (*pipeline, error) {
	key := pipelineKey(label, entryPoint)

	c.mu.RLock()
	if p, ok := c.pipelines[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)

	p, err := c.build(label, wgsl, entryPoint)
	if err != nil {
		return nil, err
	}
	c.pipelines[key] = p
	return p, nil
}

// build compiles the shader and assembles the pipeline. Caller holds mu.
func (c *pipelineCache) build(label, wgsl, entryPoint string) (*pipeline, error) {
	spirv, err := compileToSPIRV(wgsl)
	if err != nil {
		return nil, err
	}
	shader, err := createShaderModule(c.device, label, spirv)
	if err != nil {
		return nil, fmt.Errorf("compute: shader module %q: %w", label, err)
	}

	// All builtin shaders share one layout: sampled source texture,
	// writable destination texture, uniform parameter block.
	bindLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + ":bind",
		Entries: []types.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: types.ShaderStageCompute,
				Texture: &types.TextureBindingLayout{
					SampleType:    types.TextureSampleTypeFloat,
					ViewDimension: types.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: types.ShaderStageCompute,
				StorageTexture: &types.StorageTextureBindingLayout{
					Access:        types.StorageTextureAccessReadWrite,
					Format:        types.TextureFormatRGBA8Unorm,
					ViewDimension: types.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: types.ShaderStageCompute,
				Buffer: &types.BufferBindingLayout{
					Type: types.BufferBindingTypeUniform,
				},
			},
		},
	})
	if err != nil {
		c.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("compute: bind group layout %q: %w", label, err)
	}

	pipelineLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + ":layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		c.device.DestroyBindGroupLayout(bindLayout)
		c.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("compute: pipeline layout %q: %w", label, err)
	}

	handle, err := c.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     shader,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		c.device.DestroyPipelineLayout(pipelineLayout)
		c.device.DestroyBindGroupLayout(bindLayout)
		c.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("compute: pipeline %q: %w", label, err)
	}

	return &pipeline{
		shader:         shader,
		bindLayout:     bindLayout,
		pipelineLayout: pipelineLayout,
		handle:         handle,
	}, nil
}

// close destroys all cached pipelines in reverse creation order.
func (c *pipelineCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, p := range c.pipelines {
		c.device.DestroyComputePipeline(p.handle)
		c.device.DestroyPipelineLayout(p.pipelineLayout)
		c.device.DestroyBindGroupLayout(p.bindLayout)
		c.device.DestroyShaderModule(p.shader)
		delete(c.pipelines, key)
	}
}

// stats returns cache hit/miss counters.
func (c *pipelineCache) stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// pipelineKey hashes a shader identity for cache lookup.
func pipelineKey(label, entryPoint string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	h.Write([]byte{0})
	h.Write([]byte(entryPoint))
	return h.Sum64()
}
