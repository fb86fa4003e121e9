package cpu

import (
	"context"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Rec. 709 luma coefficients, used for desaturation.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// Corrector applies brightness, contrast and saturation adjustment.
// An optional mask on the second input limits the effect: where the mask
// is black the pixel passes through untouched.
type Corrector struct {
	pool *gpu.TexturePool
}

// Kind returns graph.KindCorrector.
func (c *Corrector) Kind() graph.Kind { return graph.KindCorrector }

// Process adjusts the first input, optionally masked by the second.
func (c *Corrector) Process(_ context.Context, inputs []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error) {
	in, err := firstInput(inputs)
	if err != nil {
		return nil, err
	}
	src, err := in.Image()
	if err != nil {
		return nil, err
	}

	var mask *compose.Image
	if len(inputs) > 1 && inputs[1] != nil {
		mask, err = inputs[1].Image()
		if err != nil {
			return nil, err
		}
	}

	brightness := clamp(params.Float("brightness", 0), -1, 1) * 255
	contrast := clamp(params.Float("contrast", 1), 0, 4)
	saturation := clamp(params.Float("saturation", 1), 0, 4)

	w, h := src.Width(), src.Height()
	srcPix := src.RawPixels()
	dst := make([]uint8, len(srcPix))

	for i := 0; i < len(srcPix); i += 4 {
		r := float64(srcPix[i])
		g := float64(srcPix[i+1])
		b := float64(srcPix[i+2])

		// Contrast pivots around mid gray, then brightness shifts.
		r = (r-128)*contrast + 128 + brightness
		g = (g-128)*contrast + 128 + brightness
		b = (b-128)*contrast + 128 + brightness

		if saturation != 1 {
			luma := lumaR*r + lumaG*g + lumaB*b
			r = luma + (r-luma)*saturation
			g = luma + (g-luma)*saturation
			b = luma + (b-luma)*saturation
		}

		if mask != nil {
			x := (i / 4) % w
			y := (i / 4) / w
			var m float64
			if x < mask.Width() && y < mask.Height() {
				mr, _, _, _ := mask.PixelAt(x, y)
				m = float64(mr) / 255
			}
			r = float64(srcPix[i])*(1-m) + r*m
			g = float64(srcPix[i+1])*(1-m) + g*m
			b = float64(srcPix[i+2])*(1-m) + b*m
		}

		dst[i] = clampU8(r)
		dst[i+1] = clampU8(g)
		dst[i+2] = clampU8(b)
		dst[i+3] = srcPix[i+3]
	}

	out := compose.FromPixels(w, h, dst)
	if out == nil {
		return nil, backend.ErrMissingInput
	}
	return gpu.NewCPUBuffer(out, c.pool)
}
