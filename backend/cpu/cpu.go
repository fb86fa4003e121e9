// Package cpu implements the builtin node kinds on plain pixel buffers.
// These are the reference implementations: every kind has one, and GPU
// processors fall back to them.
package cpu

import (
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/gpu"
)

// RegisterAll installs every builtin CPU processor into the registry.
// The pool may be nil; outputs are then CPU-only buffers.
func RegisterAll(reg *backend.Registry, pool *gpu.TexturePool) {
	reg.RegisterCPU(&Source{pool: pool})
	reg.RegisterCPU(&Corrector{pool: pool})
	reg.RegisterCPU(&Blur{pool: pool})
	reg.RegisterCPU(&Resize{pool: pool})
	reg.RegisterCPU(&Merge{pool: pool})
	reg.RegisterCPU(&Viewer{pool: pool})
}

// firstInput returns the first non-nil input buffer's image.
func firstInput(inputs []*gpu.DualBuffer) (*gpu.DualBuffer, error) {
	if len(inputs) == 0 || inputs[0] == nil {
		return nil, backend.ErrMissingInput
	}
	return inputs[0], nil
}

// clampU8 converts a float channel value to a byte, saturating.
func clampU8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
