// Package backend defines the node processor interface and the registry
// that maps node kinds to CPU and GPU implementations.
//
// Processors are pure with respect to the graph: they read input buffers
// and parameters and produce one output buffer. Strategy selection and
// GPU-to-CPU fallback live in the registry so the evaluator never has to
// know which implementation ran.
package backend

import (
	"context"
	"errors"

	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Common backend errors.
var (
	// ErrFallbackToCPU signals that a GPU processor cannot handle the
	// request and the CPU implementation should run instead. It is a
	// control-flow error, not a failure: the registry consumes it.
	ErrFallbackToCPU = errors.New("backend: fallback to CPU")

	// ErrNoProcessor is returned when no implementation exists for a kind.
	ErrNoProcessor = errors.New("backend: no processor for kind")

	// ErrMissingInput is returned when a required input buffer is absent.
	ErrMissingInput = errors.New("backend: missing input")

	// ErrBadParameter is returned when a parameter value is out of range
	// or of the wrong type.
	ErrBadParameter = errors.New("backend: bad parameter")
)

// Processor executes one node kind. Implementations must be safe for
// concurrent use; the evaluator runs independent nodes in parallel.
type Processor interface {
	// Kind returns the node kind this processor implements.
	Kind() graph.Kind

	// Process computes the node output from its input buffers and
	// parameters. inputs is ordered by the node's input port order;
	// optional unconnected ports appear as nil entries.
	//
	// GPU processors return ErrFallbackToCPU when they cannot serve the
	// request (no device, unsupported size); any other error is a real
	// failure that the evaluator records against the node.
	Process(ctx context.Context, inputs []*gpu.DualBuffer, params graph.Params) (*gpu.DualBuffer, error)
}
