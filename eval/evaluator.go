// Package eval evaluates composition graphs: topological ordering,
// a freshness-windowed result cache, incremental invalidation driven by
// graph events, and bounded-concurrency evaluation passes.
package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Evaluator errors.
var (
	// ErrNodeNotFound is returned when evaluating an unknown node.
	ErrNodeNotFound = errors.New("eval: node not found")

	// ErrNoOutput is returned when a node has no cached output.
	ErrNoOutput = errors.New("eval: no cached output")

	// ErrInputNotReady is returned when an upstream result is missing,
	// usually because the upstream node failed in the same pass.
	ErrInputNotReady = errors.New("eval: input not ready")
)

// entry is one cached node result. Entries hold only successes; failed
// evaluations are reported per pass and retried on the next one.
type entry struct {
	buf *gpu.DualBuffer
	at  time.Time
}

// Evaluator computes node outputs over a graph. It subscribes to the
// graph's change events: structural changes invalidate the whole cache,
// output changes invalidate the node and its forward-reachable set.
//
// The graph itself follows the single-writer contract; the evaluator
// reads it only from evaluation passes, which the owning engine never
// overlaps with mutations. The result cache has its own lock because
// pass workers fill it concurrently.
type Evaluator struct {
	g    *graph.Graph
	reg  *backend.Registry
	pool *gpu.TexturePool

	tier       compose.DeviceTier
	freshness  time.Duration
	maxWorkers int

	mu       sync.Mutex
	cache    map[graph.NodeID]*entry
	strategy compose.Strategy

	unsubscribe func()
}

// New creates an evaluator over a graph. The pool may be nil for pure
// CPU operation; cfg supplies the freshness window, worker bound and
// device tier.
func New(g *graph.Graph, reg *backend.Registry, pool *gpu.TexturePool, cfg compose.Config) *Evaluator {
	e := &Evaluator{
		g:          g,
		reg:        reg,
		pool:       pool,
		tier:       cfg.DeviceTier(),
		freshness:  cfg.FreshnessWindow,
		maxWorkers: cfg.MaxConcurrency,
		cache:      make(map[graph.NodeID]*entry),
		strategy:   compose.StrategyAuto,
	}
	if e.freshness <= 0 {
		e.freshness = compose.DefaultFreshnessWindow
	}
	if e.maxWorkers <= 0 {
		e.maxWorkers = compose.DefaultMaxConcurrency
	}
	e.unsubscribe = g.Subscribe(e.onEvent)
	return e
}

// Close unsubscribes from graph events and drops all cached results.
func (e *Evaluator) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.InvalidateAll()
}

// SetStrategy overrides the processing strategy. StrategyAuto derives
// the effective strategy from the device tier and pool pressure.
func (e *Evaluator) SetStrategy(s compose.Strategy) {
	e.mu.Lock()
	e.strategy = s
	e.mu.Unlock()
}

// Strategy returns the configured strategy.
func (e *Evaluator) Strategy() compose.Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy
}

// onEvent translates graph changes into cache invalidation.
func (e *Evaluator) onEvent(ev graph.Event) {
	switch ev.Kind {
	case graph.EventStructureChanged:
		e.InvalidateAll()
	case graph.EventNodeOutputChanged:
		e.InvalidateDownstream(ev.Node)
	case graph.EventNodeMoved:
		// Position is metadata; outputs are unaffected.
	}
}

// Invalidate drops one node's cached result.
func (e *Evaluator) Invalidate(id graph.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropLocked(id)
}

// InvalidateDownstream drops a node's cached result and everything
// forward-reachable from it.
func (e *Evaluator) InvalidateDownstream(id graph.NodeID) {
	down := e.g.Downstream(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropLocked(id)
	for _, nid := range down {
		e.dropLocked(nid)
	}
}

// InvalidateAll empties the cache.
func (e *Evaluator) InvalidateAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.cache {
		e.dropLocked(id)
	}
}

// dropLocked removes one entry and releases its buffer. Caller holds mu.
func (e *Evaluator) dropLocked(id graph.NodeID) {
	if ent, ok := e.cache[id]; ok {
		delete(e.cache, id)
		if ent.buf != nil {
			ent.buf.Release()
		}
	}
}

// Output returns a node's cached result, or ErrNoOutput when the node
// has not been evaluated since its last invalidation.
func (e *Evaluator) Output(id graph.NodeID) (*gpu.DualBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.cache[id]
	if !ok || ent.buf == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoOutput, id)
	}
	return ent.buf, nil
}

// CachedCount returns the number of cached results.
func (e *Evaluator) CachedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// TopoOrder returns the graph's nodes in dependency order: every
// producer appears before its consumers. Traversal is a three-state
// depth-first search; a back edge (a cycle that slipped past Connect
// validation, e.g. through deserialized state) is logged at Warn and
// not followed, and every node still appears exactly once.
func (e *Evaluator) TopoOrder() []graph.NodeID {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[graph.NodeID]int)
	order := make([]graph.NodeID, 0, e.g.NumNodes())

	var visit func(id graph.NodeID)
	visit = func(id graph.NodeID) {
		switch state[id] {
		case visited:
			return
		case visiting:
			compose.Logger().Warn("cycle detected during traversal", "node", string(id))
			return
		}
		state[id] = visiting
		for _, up := range e.g.Upstream(id) {
			visit(up)
		}
		state[id] = visited
		order = append(order, id)
	}

	for _, n := range e.g.Nodes() {
		visit(n.ID)
	}
	return order
}

// effectiveStrategy resolves StrategyAuto against the device tier and
// current pool pressure.
func (e *Evaluator) effectiveStrategy() compose.Strategy {
	e.mu.Lock()
	s := e.strategy
	e.mu.Unlock()
	if s != compose.StrategyAuto {
		return s
	}
	var pressure float64
	if e.pool != nil {
		pressure = e.pool.Stats().PressureEstimate
	}
	return compose.Recommend(e.tier, pressure)
}

// evaluateNode computes one node, consulting the cache first. Inputs
// come from the cache entries of upstream nodes, gathered in port
// order with nil for unconnected optional ports. Results written to the
// cache replace (and release) any stale entry; nothing is written when
// ctx is canceled.
func (e *Evaluator) evaluateNode(ctx context.Context, id graph.NodeID, strategy compose.Strategy) error {
	node := e.g.Node(id)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	e.mu.Lock()
	if ent, ok := e.cache[id]; ok && time.Since(ent.at) < e.freshness {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	inputs, err := e.gatherInputs(node)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	out, err := e.reg.Process(ctx, node.Kind, strategy, inputs, node.Params)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		// Canceled mid-pass: release instead of caching a result no one
		// will observe.
		out.Release()
		return err
	}

	e.mu.Lock()
	e.dropLocked(id)
	e.cache[id] = &entry{buf: out, at: time.Now()}
	e.mu.Unlock()

	compose.Logger().Debug("node evaluated",
		"node", string(id), "kind", string(node.Kind), "took", time.Since(start))
	return nil
}

// gatherInputs collects upstream results in input port order. Exclusive
// ports contribute one slot (nil when unconnected); multi-input ports
// contribute one slot per connection.
func (e *Evaluator) gatherInputs(node *graph.Node) ([]*gpu.DualBuffer, error) {
	var inputs []*gpu.DualBuffer
	e.mu.Lock()
	defer e.mu.Unlock()

	appendFrom := func(conn *graph.Connection) error {
		if conn == nil {
			inputs = append(inputs, nil)
			return nil
		}
		ent, ok := e.cache[conn.FromNode]
		if !ok || ent.buf == nil {
			return fmt.Errorf("%w: %s needs %s", ErrInputNotReady, node.ID, conn.FromNode)
		}
		inputs = append(inputs, ent.buf)
		return nil
	}

	for _, port := range node.Inputs {
		if port.AllowsMultiple {
			for _, conn := range e.g.ConnectionsInto(node.ID, port.ID) {
				if err := appendFrom(conn); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := appendFrom(e.g.ConnectionInto(node.ID, port.ID)); err != nil {
			return nil, err
		}
	}
	return inputs, nil
}
