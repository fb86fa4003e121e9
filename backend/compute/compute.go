// Package compute implements GPU node processors on top of gogpu/wgpu
// compute pipelines. Shaders are written in WGSL, compiled to SPIR-V
// with naga at first use and cached per device.
//
// Dispatch is gated on device readback: until the HAL device can copy
// results back to the CPU, processors warm their pipelines and hand the
// work to the CPU implementations via backend.ErrFallbackToCPU. Hosts
// with a software device skip the warmup entirely.
package compute

import (
	"context"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Backend owns the pipeline cache for one HAL device and hands out GPU
// processors bound to it.
type Backend struct {
	dev   *gpu.HALDevice
	cache *pipelineCache
}

// NewBackend creates a compute backend on a HAL device.
func NewBackend(dev *gpu.HALDevice) (*Backend, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	return &Backend{
		dev:   dev,
		cache: newPipelineCache(dev.HAL()),
	}, nil
}

// RegisterAll installs the GPU processors into the registry. The CPU
// implementations must be registered separately; they are the fallback
// targets.
func (b *Backend) RegisterAll(reg *backend.Registry) {
	reg.RegisterGPU(&correctorGPU{backend: b})
	reg.RegisterGPU(&blurGPU{backend: b})
}

// CacheStats returns pipeline cache hit/miss counters.
func (b *Backend) CacheStats() (hits, misses uint64) {
	return b.cache.stats()
}

// Close destroys all compiled pipelines.
func (b *Backend) Close() {
	b.cache.close()
}

// warm compiles and caches the named shader, then defers to the CPU
// implementation. Returns ErrFallbackToCPU on success so the registry
// runs the CPU processor; a compilation error is also a fallback, logged
// once per call rather than failing the node.
func (b *Backend) warm(label, wgsl string) error {
	if b.dev.HALQueue() == nil {
		return backend.ErrFallbackToCPU
	}
	if _, err := b.cache.getOrCreate(label, wgsl, "main"); err != nil {
		compose.Logger().Warn("compute shader unavailable", "shader", label, "error", err)
	}
	return backend.ErrFallbackToCPU
}

// correctorGPU is the compute-shader corrector.
type correctorGPU struct {
	backend *Backend
}

func (p *correctorGPU) Kind() graph.Kind { return graph.KindCorrector }

func (p *correctorGPU) Process(ctx context.Context, _ []*gpu.DualBuffer, _ graph.Params) (*gpu.DualBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, p.backend.warm("corrector", correctorWGSL)
}

// blurGPU is the compute-shader blur.
type blurGPU struct {
	backend *Backend
}

func (p *blurGPU) Kind() graph.Kind { return graph.KindBlur }

func (p *blurGPU) Process(ctx context.Context, _ []*gpu.DualBuffer, _ graph.Params) (*gpu.DualBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, p.backend.warm("blur", blurWGSL)
}
