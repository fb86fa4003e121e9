package cpu

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Resize scales the input to a target size using Catmull-Rom
// interpolation, or nearest-neighbor when the "fast" parameter is set.
type Resize struct {
	pool *gpu.TexturePool
}

// Kind returns graph.KindResize.
func (r *Resize) Kind() graph.Kind { return graph.KindResize }

// Process scales the input to the "width" x "height" parameters.
func (r *Resize) Process(_ context.Context, inputs []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error) {
	in, err := firstInput(inputs)
	if err != nil {
		return nil, err
	}
	src, err := in.Image()
	if err != nil {
		return nil, err
	}

	width := params.Int("width", 256)
	height := params.Int("height", 256)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: resize target %dx%d", backend.ErrBadParameter, width, height)
	}
	if width == src.Width() && height == src.Height() {
		return gpu.NewCPUBuffer(src, r.pool)
	}

	var scaler draw.Scaler = draw.CatmullRom
	if params.Bool("fast", false) {
		scaler = draw.NearestNeighbor
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), src.ToImage(), src.Bounds(), draw.Src, nil)

	return gpu.NewCPUBuffer(compose.FromImage(dst), r.pool)
}
