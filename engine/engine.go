// Package engine ties the compositing pieces together behind a
// single-owner facade: one goroutine owns the graph, the evaluator and
// the texture pool, and every call is serialized through its command
// queue. Callers on any goroutine get plain synchronous methods; the
// actor guarantees mutations never overlap an evaluation pass.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/backend/compute"
	"github.com/gogpu/compose/backend/cpu"
	"github.com/gogpu/compose/eval"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

// Engine errors.
var (
	// ErrEngineClosed is returned when calling a closed engine.
	ErrEngineClosed = errors.New("engine: closed")

	// ErrUnknownNode is returned for operations on nodes the graph does
	// not contain.
	ErrUnknownNode = errors.New("engine: unknown node")
)

// Options configures a new engine. The zero value is usable: software
// device, default configuration, builtin node kinds with their CPU
// processors.
type Options struct {
	// Config overrides the default configuration.
	Config *compose.Config

	// Device supplies the texture device. Nil selects a SoftwareDevice.
	Device gpu.Device

	// Provider supplies a host GPU context (a gogpu window or
	// gpucontext provider). When set and the provider exposes HAL
	// handles, the engine uses a HALDevice and registers the compute
	// processors. Ignored when Device is set explicitly.
	Provider gpu.DeviceProvider

	// Kinds overrides the node-kind registry. Nil selects the builtins.
	Kinds *graph.Registry

	// Processors overrides the processor registry. Nil selects the CPU
	// reference processors (plus compute processors on a HAL device).
	Processors *backend.Registry
}

// Engine is the compositing engine facade.
type Engine struct {
	cfg   compose.Config
	g     *graph.Graph
	kinds *graph.Registry
	procs *backend.Registry
	dev   gpu.Device
	pool  *gpu.TexturePool
	ev    *eval.Evaluator
	comp  *compute.Backend

	cmds chan func()
	quit chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New assembles and starts an engine.
func New(opts Options) (*Engine, error) {
	cfg := compose.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	dev := opts.Device
	var comp *compute.Backend
	if dev == nil {
		if opts.Provider != nil {
			hd, err := gpu.FromProvider(opts.Provider)
			if err != nil {
				return nil, fmt.Errorf("engine: host device: %w", err)
			}
			dev = hd
			comp, err = compute.NewBackend(hd)
			if err != nil {
				hd.Close()
				return nil, fmt.Errorf("engine: compute backend: %w", err)
			}
		} else {
			dev = gpu.NewSoftwareDevice()
		}
	}

	pool, err := gpu.NewTexturePool(dev, gpu.PoolOptions{
		BudgetMB:          cfg.PoolBudgetMB,
		BucketCap:         cfg.BucketCap,
		EvictionThreshold: cfg.EvictionThreshold,
	})
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("engine: texture pool: %w", err)
	}

	kinds := opts.Kinds
	if kinds == nil {
		kinds = graph.DefaultRegistry()
	}
	procs := opts.Processors
	if procs == nil {
		procs = backend.NewRegistry()
		cpu.RegisterAll(procs, pool)
		if comp != nil {
			comp.RegisterAll(procs)
		}
	}

	g := graph.New()
	e := &Engine{
		cfg:   cfg,
		g:     g,
		kinds: kinds,
		procs: procs,
		dev:   dev,
		pool:  pool,
		ev:    eval.New(g, procs, pool, cfg),
		comp:  comp,
		cmds:  make(chan func()),
		quit:  make(chan struct{}),
	}

	e.wg.Add(1)
	go e.run()
	return e, nil
}

// run is the owner goroutine. All graph, cache and pool mutation
// happens here.
func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do executes fn on the owner goroutine and waits for it.
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(done) }:
	case <-e.quit:
		return ErrEngineClosed
	}
	select {
	case <-done:
		return nil
	case <-e.quit:
		return ErrEngineClosed
	}
}

// Close stops the owner goroutine and releases the evaluator cache, the
// pool and the device. Idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.do(func() {
			e.ev.Close()
			e.pool.Close()
			if e.comp != nil {
				e.comp.Close()
			}
			e.dev.Close()
		})
		close(e.quit)
		e.wg.Wait()
	})
	return e.closeErr
}

// === Graph mutation ===

// AddNode creates a node of the given kind and adds it to the graph.
func (e *Engine) AddNode(kind graph.Kind) (graph.NodeID, error) {
	var id graph.NodeID
	var nerr error
	err := e.do(func() {
		n, err := e.kinds.New(kind)
		if err != nil {
			nerr = err
			return
		}
		e.g.AddNode(n)
		id = n.ID
	})
	if err != nil {
		return "", err
	}
	return id, nerr
}

// RemoveNode removes a node and every connection touching it.
func (e *Engine) RemoveNode(id graph.NodeID) bool {
	var ok bool
	if e.do(func() { ok = e.g.RemoveNode(id) }) != nil {
		return false
	}
	return ok
}

// MoveNode updates a node's editor position. Metadata only; no
// recomputation is triggered.
func (e *Engine) MoveNode(id graph.NodeID, x, y float64) bool {
	var ok bool
	if e.do(func() { ok = e.g.MoveNode(id, graph.Position{X: x, Y: y}) }) != nil {
		return false
	}
	return ok
}

// ConnectPorts connects an output port to an input port. Returns false
// when validation rejects the edge; an existing connection on an
// exclusive input is replaced, not rejected.
func (e *Engine) ConnectPorts(fromNode graph.NodeID, fromPort string, toNode graph.NodeID, toPort string) bool {
	var ok bool
	if e.do(func() { ok = e.g.Connect(fromNode, fromPort, toNode, toPort) }) != nil {
		return false
	}
	return ok
}

// ValidateConnection checks an edge without mutating the graph.
func (e *Engine) ValidateConnection(fromNode graph.NodeID, fromPort string, toNode graph.NodeID, toPort string) graph.ValidationResult {
	var res graph.ValidationResult
	if e.do(func() { res = e.g.Validate(fromNode, fromPort, toNode, toPort) }) != nil {
		return graph.ValidationNotFound
	}
	return res
}

// RemoveConnection removes one connection by id.
func (e *Engine) RemoveConnection(id graph.ConnectionID) bool {
	var ok bool
	if e.do(func() { ok = e.g.RemoveConnection(id) }) != nil {
		return false
	}
	return ok
}

// RemoveConnectionsToPort removes every connection into an input port
// and returns how many were removed.
func (e *Engine) RemoveConnectionsToPort(id graph.NodeID, portID string) int {
	var n int
	if e.do(func() { n = e.g.RemoveConnectionsToPort(id, portID) }) != nil {
		return 0
	}
	return n
}

// UpdateNodeParameter sets one parameter and invalidates the node's
// downstream results.
func (e *Engine) UpdateNodeParameter(id graph.NodeID, key string, value any) bool {
	var ok bool
	if e.do(func() { ok = e.g.UpdateNodeParameter(id, key, value) }) != nil {
		return false
	}
	return ok
}

// === Evaluation ===

// ProcessGraph runs a full evaluation pass and blocks until it finishes
// or ctx is canceled. Mutations queued behind the pass wait for it.
func (e *Engine) ProcessGraph(ctx context.Context) (*eval.PassResult, error) {
	var res *eval.PassResult
	if err := e.do(func() { res = e.ev.Process(ctx) }); err != nil {
		return nil, err
	}
	return res, nil
}

// ProcessGraphAsync runs a full pass without blocking the caller. The
// result arrives on the returned channel; cancel ctx to stop the pass
// early. The pass still serializes with mutations.
func (e *Engine) ProcessGraphAsync(ctx context.Context) <-chan *eval.PassResult {
	out := make(chan *eval.PassResult, 1)
	go func() {
		res, err := e.ProcessGraph(ctx)
		if err != nil {
			res = &eval.PassResult{Failed: map[graph.NodeID]error{"": err}}
		}
		out <- res
	}()
	return out
}

// GetOutput returns a node's cached result as a CPU image without
// forcing recomputation. Returns an error when nothing is cached.
func (e *Engine) GetOutput(id graph.NodeID) (*compose.Image, error) {
	var img *compose.Image
	var gerr error
	err := e.do(func() {
		buf, err := e.ev.Output(id)
		if err != nil {
			gerr = err
			return
		}
		img, gerr = buf.Image()
	})
	if err != nil {
		return nil, err
	}
	return img, gerr
}

// RefreshNode evaluates one node and its upstream chain.
func (e *Engine) RefreshNode(ctx context.Context, id graph.NodeID) error {
	var perr error
	if err := e.do(func() { perr = e.ev.ProcessNode(ctx, id) }); err != nil {
		return err
	}
	return perr
}

// ForceRefresh invalidates every cached result and re-runs the pass.
func (e *Engine) ForceRefresh(ctx context.Context) (*eval.PassResult, error) {
	var res *eval.PassResult
	if err := e.do(func() {
		e.ev.InvalidateAll()
		res = e.ev.Process(ctx)
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// SetStrategy overrides adaptive CPU/GPU selection.
func (e *Engine) SetStrategy(s compose.Strategy) {
	_ = e.do(func() { e.ev.SetStrategy(s) })
}

// === Pool introspection ===

// Statistics returns the texture pool counters.
func (e *Engine) Statistics() gpu.PoolStats {
	var stats gpu.PoolStats
	_ = e.do(func() { stats = e.pool.Stats() })
	return stats
}

// ForceCleanup empties the texture pool's free lists.
func (e *Engine) ForceCleanup() {
	_ = e.do(func() { e.pool.ForceCleanup() })
}

// AdaptiveCleanup trims the pool under memory pressure.
func (e *Engine) AdaptiveCleanup() {
	_ = e.do(func() { e.pool.AdaptiveCleanup() })
}

// === Inspection ===

// Node returns a node by id, or nil.
func (e *Engine) Node(id graph.NodeID) *graph.Node {
	var n *graph.Node
	_ = e.do(func() { n = e.g.Node(id) })
	return n
}

// NumNodes returns the node count.
func (e *Engine) NumNodes() int {
	var n int
	_ = e.do(func() { n = e.g.NumNodes() })
	return n
}

// NumConnections returns the connection count.
func (e *Engine) NumConnections() int {
	var n int
	_ = e.do(func() { n = e.g.NumConnections() })
	return n
}

// ExportDOT renders the graph in Graphviz DOT form for debugging.
func (e *Engine) ExportDOT() string {
	var s string
	_ = e.do(func() { s = graph.ToDOT(e.g) })
	return s
}

// ExportJSON marshals the graph structure.
func (e *Engine) ExportJSON() ([]byte, error) {
	var data []byte
	var jerr error
	if err := e.do(func() { data, jerr = e.g.MarshalJSON() }); err != nil {
		return nil, err
	}
	return data, jerr
}

// ImportJSON replaces the graph contents with a deserialized one. Every
// edge re-validates on the way in, so smuggled cycles are dropped.
func (e *Engine) ImportJSON(data []byte) error {
	var ierr error
	err := e.do(func() {
		// Validate into a scratch graph first so a bad document cannot
		// leave the live graph half-loaded.
		if _, err := graph.FromJSON(data, e.kinds); err != nil {
			ierr = err
			return
		}
		ierr = e.g.LoadJSON(data, e.kinds)
	})
	if err != nil {
		return err
	}
	return ierr
}
