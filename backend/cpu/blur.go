package cpu

import (
	"context"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Blur applies a separable box blur. Three box passes approximate a
// gaussian closely enough for preview work at a fraction of the cost.
type Blur struct {
	pool *gpu.TexturePool
}

// Kind returns graph.KindBlur.
func (b *Blur) Kind() graph.Kind { return graph.KindBlur }

// Process blurs the input with the "radius" parameter. Radius zero is a
// passthrough.
func (b *Blur) Process(_ context.Context, inputs []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error) {
	in, err := firstInput(inputs)
	if err != nil {
		return nil, err
	}
	src, err := in.Image()
	if err != nil {
		return nil, err
	}

	radius := int(clamp(params.Float("radius", 2), 0, 256))
	if radius == 0 {
		return gpu.NewCPUBuffer(src, b.pool)
	}

	w, h := src.Width(), src.Height()
	a := append([]uint8(nil), src.RawPixels()...)
	tmp := make([]uint8, len(a))
	for pass := 0; pass < 3; pass++ {
		boxBlurH(a, tmp, w, h, radius)
		boxBlurV(tmp, a, w, h, radius)
	}

	return gpu.NewCPUBuffer(compose.FromPixels(w, h, a), b.pool)
}

// boxBlurH averages each row over a sliding window of 2*radius+1 pixels,
// clamping at the edges.
func boxBlurH(src, dst []uint8, w, h, radius int) {
	win := 2*radius + 1
	for y := 0; y < h; y++ {
		row := y * w * 4
		var sum [4]int
		for i := -radius; i <= radius; i++ {
			o := row + clampIndex(i, w)*4
			for c := 0; c < 4; c++ {
				sum[c] += int(src[o+c])
			}
		}
		for x := 0; x < w; x++ {
			o := row + x*4
			for c := 0; c < 4; c++ {
				dst[o+c] = uint8(sum[c] / win) //nolint:gosec // G115: average of bytes
			}
			lead := row + clampIndex(x+radius+1, w)*4
			trail := row + clampIndex(x-radius, w)*4
			for c := 0; c < 4; c++ {
				sum[c] += int(src[lead+c]) - int(src[trail+c])
			}
		}
	}
}

// boxBlurV is boxBlurH along columns.
func boxBlurV(src, dst []uint8, w, h, radius int) {
	win := 2*radius + 1
	for x := 0; x < w; x++ {
		col := x * 4
		var sum [4]int
		for i := -radius; i <= radius; i++ {
			o := col + clampIndex(i, h)*w*4
			for c := 0; c < 4; c++ {
				sum[c] += int(src[o+c])
			}
		}
		for y := 0; y < h; y++ {
			o := col + y*w*4
			for c := 0; c < 4; c++ {
				dst[o+c] = uint8(sum[c] / win) //nolint:gosec // G115: average of bytes
			}
			lead := col + clampIndex(y+radius+1, h)*w*4
			trail := col + clampIndex(y-radius, h)*w*4
			for c := 0; c < 4; c++ {
				sum[c] += int(src[lead+c]) - int(src[trail+c])
			}
		}
	}
}

// clampIndex bounds i to [0, n).
func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
