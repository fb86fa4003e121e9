package cpu

import (
	"context"

	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Viewer passes its input through. Its cached output is the displayed
// frame, so the evaluator pins viewer results at display priority.
type Viewer struct {
	pool *gpu.TexturePool
}

// Kind returns graph.KindViewer.
func (v *Viewer) Kind() graph.Kind { return graph.KindViewer }

// Process wraps the input image in a fresh buffer. Images are immutable,
// so sharing the pixels with the upstream buffer is safe even after the
// upstream cache entry is invalidated.
func (v *Viewer) Process(_ context.Context, inputs []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error) {
	_ = params
	in, err := firstInput(inputs)
	if err != nil {
		return nil, err
	}
	img, err := in.Image()
	if err != nil {
		return nil, err
	}
	return gpu.NewCPUBuffer(img, v.pool)
}
