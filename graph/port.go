package graph

import "fmt"

// Direction tells whether a port consumes or produces data.
type Direction uint8

const (
	// DirInput marks a port that receives data from an upstream node.
	DirInput Direction = iota

	// DirOutput marks a port that feeds data to downstream nodes.
	DirOutput
)

// String returns a human-readable name for the direction.
func (d Direction) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(d))
	}
}

// DataType is the payload type tag carried by a port.
// Two ports can only be connected when their data types match.
type DataType uint8

const (
	// DataImage is a full RGBA image payload.
	DataImage DataType = iota

	// DataMask is a single-channel coverage mask payload.
	DataMask

	// DataScalar is a single numeric value payload.
	DataScalar
)

// String returns a human-readable name for the data type.
func (t DataType) String() string {
	switch t {
	case DataImage:
		return "image"
	case DataMask:
		return "mask"
	case DataScalar:
		return "scalar"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Port is a typed attachment point on a node.
//
// An input port without AllowsMultiple accepts at most one incoming
// connection; connecting a second source replaces the first (see
// Graph.Connect). AllowsMultiple is meaningless on output ports, which
// always fan out freely.
type Port struct {
	// ID identifies the port within its node (e.g. "in0", "out0").
	ID string

	// Direction is DirInput or DirOutput.
	Direction Direction

	// Type is the payload data type.
	Type DataType

	// AllowsMultiple relaxes the single-connection invariant on inputs.
	AllowsMultiple bool
}
