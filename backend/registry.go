package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Registry maps node kinds to processor implementations per strategy.
// It is an explicit value handed to the evaluator, not package state, so
// tests and embedders can build reduced or extended sets.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	cpu map[graph.Kind]Processor
	gpu map[graph.Kind]Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cpu: make(map[graph.Kind]Processor),
		gpu: make(map[graph.Kind]Processor),
	}
}

// RegisterCPU installs the CPU implementation for a kind, replacing any
// previous one. Every kind needs a CPU implementation; it is the
// fallback target for GPU processors.
func (r *Registry) RegisterCPU(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cpu[p.Kind()] = p
}

// RegisterGPU installs the GPU implementation for a kind, replacing any
// previous one.
func (r *Registry) RegisterGPU(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gpu[p.Kind()] = p
}

// Kinds returns the kinds with at least a CPU implementation, sorted.
func (r *Registry) Kinds() []graph.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]graph.Kind, 0, len(r.cpu))
	for k := range r.cpu {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// HasGPU reports whether a GPU implementation is registered for a kind.
func (r *Registry) HasGPU(kind graph.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.gpu[kind]
	return ok
}

// Process runs the kind under the given strategy. StrategyGPU and
// StrategyAuto try the GPU implementation first and fall back to the CPU
// one when the processor reports ErrFallbackToCPU or none is registered.
// StrategyCPU skips GPU entirely.
func (r *Registry) Process(ctx context.Context, kind graph.Kind, strategy compose.Strategy,
	inputs []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error) {

	r.mu.RLock()
	gpuProc := r.gpu[kind]
	cpuProc := r.cpu[kind]
	r.mu.RUnlock()

	if strategy != compose.StrategyCPU && gpuProc != nil {
		out, err := gpuProc.Process(ctx, inputs, params)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			return nil, err
		}
		compose.Logger().Debug("processor fell back to CPU", "kind", string(kind))
	}

	if cpuProc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoProcessor, kind)
	}
	return cpuProc.Process(ctx, inputs, params)
}
