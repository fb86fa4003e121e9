// Package graph implements the compositing node graph: nodes with typed
// ports, directed connections between them, structural validation (cycle
// and type checks), and change notification for incremental evaluation.
//
// A Graph is a single-writer structure. All mutations must be serialized
// by the owner (see the engine package, which funnels every mutating call
// through one goroutine); reads during an evaluation pass rely on the
// structure not changing mid-traversal.
package graph

import (
	"sort"
)

// Graph owns the full set of nodes and connections of one composition.
// Nodes and connections are addressed by ID; removing a node cascades to
// every connection touching it, so no transient state ever references a
// missing node.
type Graph struct {
	nodes map[NodeID]*Node
	conns map[ConnectionID]*Connection

	events notifier
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
		conns: make(map[ConnectionID]*Connection),
	}
}

// Subscribe registers a callback for graph change events and returns an
// unsubscribe function. Callbacks run synchronously on the mutating
// goroutine, so they must not re-enter the graph.
func (g *Graph) Subscribe(fn func(Event)) func() {
	return g.events.subscribe(fn)
}

// AddNode inserts a node into the graph. A disconnected node is always
// valid, so there is no invariant to check. Adding a node whose ID is
// already present is a no-op returning false.
func (g *Graph) AddNode(n *Node) bool {
	if n == nil || n.ID == "" {
		return false
	}
	if _, exists := g.nodes[n.ID]; exists {
		return false
	}
	g.nodes[n.ID] = n
	g.events.publish(Event{Kind: EventStructureChanged})
	return true
}

// RemoveNode removes a node and every connection touching it. The cascade
// happens before the node disappears so observers never see a connection
// referencing a missing node. Returns false if the node does not exist.
func (g *Graph) RemoveNode(id NodeID) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}

	for _, cid := range n.InputConnections() {
		g.detach(cid)
	}
	for _, cid := range n.OutputConnections() {
		g.detach(cid)
	}
	delete(g.nodes, id)

	g.events.publish(Event{Kind: EventStructureChanged})
	return true
}

// MoveNode updates a node's editor position. Pure metadata; publishes
// EventNodeMoved, which triggers no recomputation.
func (g *Graph) MoveNode(id NodeID, pos Position) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.Position = pos
	g.events.publish(Event{Kind: EventNodeMoved, Node: id})
	return true
}

// Connect validates and creates a connection from fromNode.fromPort to
// toNode.toPort. On a validation failure nothing is mutated and false is
// returned; callers must check the result, there is no error path.
//
// When the target is an exclusive input that is already occupied, the
// existing connection is removed and the new one created in its place
// (replace, not reject).
func (g *Graph) Connect(fromNode NodeID, fromPort string, toNode NodeID, toPort string) bool {
	switch g.Validate(fromNode, fromPort, toNode, toPort) {
	case ValidationOK:
	case ValidationReplace:
		g.RemoveConnectionsToPort(toNode, toPort)
	default:
		return false
	}

	c := &Connection{
		ID:       NewConnectionID(),
		FromNode: fromNode,
		FromPort: fromPort,
		ToNode:   toNode,
		ToPort:   toPort,
	}
	g.conns[c.ID] = c
	g.nodes[fromNode].outputConns = append(g.nodes[fromNode].outputConns, c.ID)
	g.nodes[toNode].inputConns = append(g.nodes[toNode].inputConns, c.ID)

	g.events.publish(Event{Kind: EventStructureChanged})
	return true
}

// RemoveConnection detaches a connection from both endpoint nodes and
// removes it from the graph. Returns false if the connection is unknown.
func (g *Graph) RemoveConnection(id ConnectionID) bool {
	if !g.detach(id) {
		return false
	}
	g.events.publish(Event{Kind: EventStructureChanged})
	return true
}

// RemoveConnectionsToPort removes every connection arriving at the given
// input port and returns how many were removed. Used to clear an
// exclusive input before wiring a replacement.
func (g *Graph) RemoveConnectionsToPort(nodeID NodeID, portID string) int {
	n, ok := g.nodes[nodeID]
	if !ok {
		return 0
	}
	removed := 0
	for _, cid := range n.InputConnections() {
		if c := g.conns[cid]; c != nil && c.ToPort == portID {
			if g.detach(cid) {
				removed++
			}
		}
	}
	if removed > 0 {
		g.events.publish(Event{Kind: EventStructureChanged})
	}
	return removed
}

// UpdateNodeParameter sets a node parameter and publishes
// EventNodeOutputChanged so only the node's downstream set is recomputed.
func (g *Graph) UpdateNodeParameter(id NodeID, key string, value any) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	if n.Params == nil {
		n.Params = make(Params)
	}
	n.Params[key] = value
	g.events.publish(Event{Kind: EventNodeOutputChanged, Node: id})
	return true
}

// MarkOutputChanged signals that a node's underlying output source
// changed (e.g. a source node's media was swapped) without any parameter
// or structure edit.
func (g *Graph) MarkOutputChanged(id NodeID) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	g.events.publish(Event{Kind: EventNodeOutputChanged, Node: id})
	return true
}

// detach removes a connection from the graph and both mirror lists.
func (g *Graph) detach(id ConnectionID) bool {
	c, ok := g.conns[id]
	if !ok {
		return false
	}
	if from := g.nodes[c.FromNode]; from != nil {
		from.outputConns = removeConnRef(from.outputConns, id)
	}
	if to := g.nodes[c.ToNode]; to != nil {
		to.inputConns = removeConnRef(to.inputConns, id)
	}
	delete(g.conns, id)
	return true
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Connection returns the connection with the given ID, or nil.
func (g *Graph) Connection(id ConnectionID) *Connection {
	return g.conns[id]
}

// Nodes returns all nodes sorted by ID for deterministic iteration.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connections returns all connections sorted by ID.
func (g *Graph) Connections() []*Connection {
	out := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumConnections returns the number of connections in the graph.
func (g *Graph) NumConnections() int { return len(g.conns) }

// ConnectionInto returns the unique connection arriving at an exclusive
// input port, or nil if the port is unconnected.
func (g *Graph) ConnectionInto(nodeID NodeID, portID string) *Connection {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	for _, cid := range n.inputConns {
		if c := g.conns[cid]; c != nil && c.ToPort == portID {
			return c
		}
	}
	return nil
}

// ConnectionsInto returns every connection arriving at an input port, in
// insertion order. Used for multi-input ports.
func (g *Graph) ConnectionsInto(nodeID NodeID, portID string) []*Connection {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	var out []*Connection
	for _, cid := range n.inputConns {
		if c := g.conns[cid]; c != nil && c.ToPort == portID {
			out = append(out, c)
		}
	}
	return out
}

// Upstream returns the IDs of nodes directly feeding the given node,
// in input port order.
func (g *Graph) Upstream(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var out []NodeID
	for _, p := range n.Inputs {
		for _, c := range g.ConnectionsInto(id, p.ID) {
			out = append(out, c.FromNode)
		}
	}
	return out
}

// Downstream returns the set of nodes transitively reachable from the
// given node along connections, excluding the node itself. Breadth-first
// with a visited set, so diamond-shaped graphs are traversed once.
func (g *Graph) Downstream(id NodeID) []NodeID {
	visited := map[NodeID]bool{id: true}
	queue := []NodeID{id}
	var out []NodeID

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		n := g.nodes[cur]
		if n == nil {
			continue
		}
		for _, cid := range n.outputConns {
			c := g.conns[cid]
			if c == nil || visited[c.ToNode] {
				continue
			}
			visited[c.ToNode] = true
			out = append(out, c.ToNode)
			queue = append(queue, c.ToNode)
		}
	}
	return out
}
