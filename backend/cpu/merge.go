package cpu

import (
	"context"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Merge composites its inputs with the over operator. The first input is
// the bottom layer; later inputs stack on top. The output takes the
// bottom layer's size and layers are aligned at the origin.
type Merge struct {
	pool *gpu.TexturePool
}

// Kind returns graph.KindMerge.
func (m *Merge) Kind() graph.Kind { return graph.KindMerge }

// Process stacks all connected inputs bottom to top.
func (m *Merge) Process(_ context.Context, inputs []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error) {
	_ = params
	in, err := firstInput(inputs)
	if err != nil {
		return nil, err
	}
	bottom, err := in.Image()
	if err != nil {
		return nil, err
	}

	w, h := bottom.Width(), bottom.Height()
	acc := append([]uint8(nil), bottom.RawPixels()...)

	for _, buf := range inputs[1:] {
		if buf == nil {
			continue
		}
		layer, err := buf.Image()
		if err != nil {
			return nil, err
		}
		over(acc, layer, w, h)
	}

	return gpu.NewCPUBuffer(compose.FromPixels(w, h, acc), m.pool)
}

// over composites src over the accumulator with straight alpha.
func over(acc []uint8, src *compose.Image, w, h int) {
	sw := src.Width()
	if sw > w {
		sw = w
	}
	sh := src.Height()
	if sh > h {
		sh = h
	}
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			sr, sg, sb, sa := src.PixelAt(x, y)
			if sa == 0 {
				continue
			}
			o := (y*w + x) * 4
			a := float64(sa) / 255
			da := float64(acc[o+3]) / 255
			outA := a + da*(1-a)
			if outA == 0 {
				continue
			}
			blend := func(s, d uint8) uint8 {
				v := (float64(s)*a + float64(d)*da*(1-a)) / outA
				return clampU8(v)
			}
			acc[o] = blend(sr, acc[o])
			acc[o+1] = blend(sg, acc[o+1])
			acc[o+2] = blend(sb, acc[o+2])
			acc[o+3] = clampU8(outA * 255)
		}
	}
}
