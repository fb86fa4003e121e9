package cpu

import (
	"context"
	"fmt"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Source generates a constant-color image from its parameters.
type Source struct {
	pool *gpu.TexturePool
}

// Kind returns graph.KindSource.
func (s *Source) Kind() graph.Kind { return graph.KindSource }

// Process builds a width x height image filled with the parameter color.
func (s *Source) Process(_ context.Context, _ []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error) {
	width := params.Int("width", 256)
	height := params.Int("height", 256)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: source size %dx%d", backend.ErrBadParameter, width, height)
	}

	r := clampU8(clamp(params.Float("red", 0), 0, 1) * 255)
	g := clampU8(clamp(params.Float("green", 0), 0, 1) * 255)
	b := clampU8(clamp(params.Float("blue", 0), 0, 1) * 255)
	a := clampU8(clamp(params.Float("alpha", 1), 0, 1) * 255)

	pix := make([]uint8, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = r
		pix[i+1] = g
		pix[i+2] = b
		pix[i+3] = a
	}
	img := compose.FromPixels(width, height, pix)
	return gpu.NewCPUBuffer(img, s.pool)
}
