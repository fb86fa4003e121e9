package graph

import "fmt"

// ValidationResult is the outcome of checking a prospective connection.
// Structural problems are reported as values, never as errors or panics;
// the graph is left unmodified on any non-OK result.
type ValidationResult uint8

const (
	// ValidationOK means the connection can be created as-is.
	ValidationOK ValidationResult = iota

	// ValidationReplace means the connection is legal but the target input
	// is exclusive and already occupied; creating it replaces the existing
	// connection rather than rejecting the request.
	ValidationReplace

	// ValidationNotFound means a referenced node or port does not exist.
	ValidationNotFound

	// ValidationSameNode means source and target are the same node.
	ValidationSameNode

	// ValidationBadDirection means the source is not an output port or the
	// target is not an input port.
	ValidationBadDirection

	// ValidationTypeMismatch means the port data types differ.
	ValidationTypeMismatch

	// ValidationCycle means the connection would close a directed cycle.
	ValidationCycle
)

// String returns a human-readable name for the result.
func (r ValidationResult) String() string {
	switch r {
	case ValidationOK:
		return "ok"
	case ValidationReplace:
		return "replace-existing"
	case ValidationNotFound:
		return "node or port not found"
	case ValidationSameNode:
		return "source and target are the same node"
	case ValidationBadDirection:
		return "incompatible port directions"
	case ValidationTypeMismatch:
		return "port data types do not match"
	case ValidationCycle:
		return "would create cycle"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(r))
	}
}

// Connectable reports whether the result permits creating the connection
// (possibly by replacing an existing one).
func (r ValidationResult) Connectable() bool {
	return r == ValidationOK || r == ValidationReplace
}

// Validate checks whether connecting fromNode.fromPort to toNode.toPort
// is structurally legal. Checks run in order: existence, same-node,
// directions, data types, exclusive-input occupancy, cycle.
//
// The cycle check is a reachability search from the prospective target
// back to the prospective source over existing connections: if the target
// already reaches the source, the new edge would close a cycle. The
// visited set is per-call; nothing is persisted. Worst case O(V+E).
func (g *Graph) Validate(fromNode NodeID, fromPort string, toNode NodeID, toPort string) ValidationResult {
	src, ok := g.nodes[fromNode]
	if !ok {
		return ValidationNotFound
	}
	dst, ok := g.nodes[toNode]
	if !ok {
		return ValidationNotFound
	}

	if fromNode == toNode {
		return ValidationSameNode
	}

	out, ok := src.OutputPort(fromPort)
	if !ok {
		// The port may exist with the wrong direction.
		if _, isInput := src.InputPort(fromPort); isInput {
			return ValidationBadDirection
		}
		return ValidationNotFound
	}
	in, ok := dst.InputPort(toPort)
	if !ok {
		if _, isOutput := dst.OutputPort(toPort); isOutput {
			return ValidationBadDirection
		}
		return ValidationNotFound
	}

	if out.Type != in.Type {
		return ValidationTypeMismatch
	}

	if g.reaches(toNode, fromNode) {
		return ValidationCycle
	}

	if !in.AllowsMultiple {
		for _, cid := range dst.inputConns {
			if c := g.conns[cid]; c != nil && c.ToPort == toPort {
				return ValidationReplace
			}
		}
	}

	return ValidationOK
}

// reaches reports whether start can reach goal by following connections
// in the downstream direction. Iterative DFS with a per-call visited set.
func (g *Graph) reaches(start, goal NodeID) bool {
	if start == goal {
		return true
	}
	visited := map[NodeID]bool{start: true}
	stack := []NodeID{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := g.nodes[id]
		if n == nil {
			continue
		}
		for _, cid := range n.outputConns {
			c := g.conns[cid]
			if c == nil || visited[c.ToNode] {
				continue
			}
			if c.ToNode == goal {
				return true
			}
			visited[c.ToNode] = true
			stack = append(stack, c.ToNode)
		}
	}
	return false
}
