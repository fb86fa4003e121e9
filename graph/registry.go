package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Registry errors.
var (
	// ErrKindRegistered is returned when registering a duplicate kind.
	ErrKindRegistered = errors.New("graph: node kind already registered")

	// ErrKindUnknown is returned when constructing an unregistered kind.
	ErrKindUnknown = errors.New("graph: unknown node kind")
)

// Kind is a node type tag. The set is open-ended: hosts register their
// own kinds alongside the builtins.
type Kind string

// Builtin node kinds.
const (
	// KindSource produces an image from its parameters or attached media.
	KindSource Kind = "source"

	// KindCorrector applies brightness/contrast/saturation adjustment.
	KindCorrector Kind = "corrector"

	// KindBlur applies a blur with a radius parameter.
	KindBlur Kind = "blur"

	// KindResize scales the input to a target size.
	KindResize Kind = "resize"

	// KindMerge composites any number of inputs over each other.
	KindMerge Kind = "merge"

	// KindViewer displays its input; its cached output is the final frame.
	KindViewer Kind = "viewer"
)

// Spec describes how to construct nodes of one kind: the port layout and
// the default parameters.
type Spec struct {
	// Kind is the type tag.
	Kind Kind

	// Inputs and Outputs are templates for the node's port lists.
	Inputs  []Port
	Outputs []Port

	// Defaults seeds the parameter map of new nodes.
	Defaults Params
}

// Registry maps node kinds to their construction specs.
//
// A Registry is an explicitly constructed value passed to whatever needs
// it; there is no process-wide instance. Use DefaultRegistry for the
// builtin kinds and Register to extend it.
type Registry struct {
	specs map[Kind]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[Kind]Spec)}
}

// Register adds a spec. Registering an already-known kind is an error so
// hosts cannot silently shadow the builtins.
func (r *Registry) Register(spec Spec) error {
	if spec.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrKindUnknown)
	}
	if _, exists := r.specs[spec.Kind]; exists {
		return fmt.Errorf("%w: %q", ErrKindRegistered, spec.Kind)
	}
	r.specs[spec.Kind] = spec
	return nil
}

// Spec returns the spec for a kind.
func (r *Registry) Spec(kind Kind) (Spec, bool) {
	s, ok := r.specs[kind]
	return s, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.specs))
	for k := range r.specs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New constructs a node of the given kind with a fresh identity, the
// spec's port layout and a copy of its default parameters.
func (r *Registry) New(kind Kind) (*Node, error) {
	spec, ok := r.specs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKindUnknown, kind)
	}

	inputs := make([]Port, len(spec.Inputs))
	copy(inputs, spec.Inputs)
	outputs := make([]Port, len(spec.Outputs))
	copy(outputs, spec.Outputs)

	params := spec.Defaults.Clone()
	if params == nil {
		params = make(Params)
	}

	return &Node{
		ID:      NewNodeID(),
		Kind:    kind,
		Inputs:  inputs,
		Outputs: outputs,
		Params:  params,
	}, nil
}

// DefaultRegistry returns a new registry populated with the builtin
// compositing kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	imageIn := Port{ID: "in0", Direction: DirInput, Type: DataImage}
	imageOut := Port{ID: "out0", Direction: DirOutput, Type: DataImage}

	specs := []Spec{
		{
			Kind:    KindSource,
			Outputs: []Port{imageOut},
			Defaults: Params{
				"width":  256,
				"height": 256,
				"red":    0.0,
				"green":  0.0,
				"blue":   0.0,
				"alpha":  1.0,
			},
		},
		{
			Kind:   KindCorrector,
			Inputs: []Port{imageIn, {ID: "in1", Direction: DirInput, Type: DataMask}},
			Outputs: []Port{
				imageOut,
			},
			Defaults: Params{
				"brightness": 0.0,
				"contrast":   1.0,
				"saturation": 1.0,
			},
		},
		{
			Kind:     KindBlur,
			Inputs:   []Port{imageIn},
			Outputs:  []Port{imageOut},
			Defaults: Params{"radius": 2.0},
		},
		{
			Kind:     KindResize,
			Inputs:   []Port{imageIn},
			Outputs:  []Port{imageOut},
			Defaults: Params{"width": 256, "height": 256},
		},
		{
			Kind:    KindMerge,
			Inputs:  []Port{{ID: "in0", Direction: DirInput, Type: DataImage, AllowsMultiple: true}},
			Outputs: []Port{imageOut},
		},
		{
			Kind:   KindViewer,
			Inputs: []Port{imageIn},
		},
	}

	for _, s := range specs {
		// Registering builtins into a fresh registry cannot collide.
		_ = r.Register(s)
	}
	return r
}
