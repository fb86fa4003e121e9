package graph

import (
	"github.com/google/uuid"
)

// NodeID uniquely identifies a node within a graph.
type NodeID string

// NewNodeID generates a fresh random node identity.
func NewNodeID() NodeID { return NodeID(uuid.NewString()) }

// Position is 2D editor placement metadata. It has no effect on
// evaluation; moving a node never triggers recomputation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Params is a string-keyed parameter map holding numeric, boolean and
// string values. The typed accessors tolerate missing keys and foreign
// types by returning the provided default.
type Params map[string]any

// Float returns the parameter as a float64, accepting int values too.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Int returns the parameter as an int, accepting float64 values too.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns the parameter as a bool.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// String returns the parameter as a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Clone returns a shallow copy of the parameter map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Node is a unit of processing in the compositing graph.
//
// Nodes are value-addressable via their ID and owned by a Graph; the
// mirrored connection lists give O(1) access to the edges touching the
// node and are maintained by the Graph on connect/disconnect.
type Node struct {
	// ID is the opaque unique identity of the node.
	ID NodeID

	// Kind is the node type tag (see Registry).
	Kind Kind

	// Position is editor placement metadata.
	Position Position

	// Inputs is the ordered list of typed input ports.
	Inputs []Port

	// Outputs is the ordered list of typed output ports.
	Outputs []Port

	// Params holds the node parameters.
	Params Params

	// inputConns and outputConns mirror the graph's connection set for
	// the edges touching this node. Maintained by Graph.
	inputConns  []ConnectionID
	outputConns []ConnectionID
}

// InputPort looks up an input port by ID.
func (n *Node) InputPort(id string) (Port, bool) {
	for _, p := range n.Inputs {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// OutputPort looks up an output port by ID.
func (n *Node) OutputPort(id string) (Port, bool) {
	for _, p := range n.Outputs {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// InputConnections returns the IDs of connections arriving at this node.
// The returned slice is a copy.
func (n *Node) InputConnections() []ConnectionID {
	out := make([]ConnectionID, len(n.inputConns))
	copy(out, n.inputConns)
	return out
}

// OutputConnections returns the IDs of connections leaving this node.
// The returned slice is a copy.
func (n *Node) OutputConnections() []ConnectionID {
	out := make([]ConnectionID, len(n.outputConns))
	copy(out, n.outputConns)
	return out
}

// removeConnRef deletes a connection ID from a mirror list in place.
func removeConnRef(list []ConnectionID, id ConnectionID) []ConnectionID {
	for i, c := range list {
		if c == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
