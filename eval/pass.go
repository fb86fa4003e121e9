package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/graph"
)

// PassResult aggregates the outcome of one evaluation pass. A failed
// node does not abort the pass: independent branches still complete,
// and only the failed node's forward-reachable set is skipped.
type PassResult struct {
	// Completed lists nodes evaluated (or served fresh from cache).
	Completed []graph.NodeID

	// Failed maps nodes to their evaluation errors.
	Failed map[graph.NodeID]error

	// Skipped lists nodes not evaluated: downstream of a failure, or
	// unfinished when the pass was canceled.
	Skipped []graph.NodeID

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// OK reports whether every node completed.
func (r *PassResult) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Err returns nil when the pass is clean, otherwise a summary error.
func (r *PassResult) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("eval: pass incomplete: %d failed, %d skipped",
		len(r.Failed), len(r.Skipped))
}

// Process evaluates the whole graph. Dependency-independent nodes run
// concurrently on at most MaxConcurrency workers; each node starts only
// after all its upstream nodes completed. Cancellation stops scheduling
// and leaves unfinished nodes out of the cache.
func (e *Evaluator) Process(ctx context.Context) *PassResult {
	start := time.Now()
	res := &PassResult{Failed: make(map[graph.NodeID]error)}

	order := e.TopoOrder()
	if len(order) == 0 {
		res.Duration = time.Since(start)
		return res
	}

	pos := make(map[graph.NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	// Dependency edges consistent with the topological order. Back edges
	// from a cycle were already warned about in TopoOrder and are left
	// out so the pass terminates.
	deps := make(map[graph.NodeID][]graph.NodeID, len(order))
	dependents := make(map[graph.NodeID][]graph.NodeID, len(order))
	for _, id := range order {
		seen := make(map[graph.NodeID]struct{})
		for _, up := range e.g.Upstream(id) {
			if pos[up] >= pos[id] {
				continue
			}
			if _, dup := seen[up]; dup {
				continue
			}
			seen[up] = struct{}{}
			deps[id] = append(deps[id], up)
			dependents[up] = append(dependents[up], id)
		}
	}

	strategy := e.effectiveStrategy()

	var (
		mu      sync.Mutex
		remain  = make(map[graph.NodeID]int, len(order))
		tainted = make(map[graph.NodeID]bool)
		pending = len(order)
	)
	ready := make(chan graph.NodeID, len(order))

	// finish settles one node and releases any dependents that became
	// ready. A tainted dependent (some dependency failed or was skipped)
	// is skipped immediately, which can cascade further down.
	finish := func(id graph.NodeID, err error) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err == nil:
			res.Completed = append(res.Completed, id)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			res.Skipped = append(res.Skipped, id)
			tainted[id] = true
		default:
			res.Failed[id] = err
			tainted[id] = true
		}
		pending--

		queue := append([]graph.NodeID(nil), dependents[id]...)
		for len(queue) > 0 {
			dep := queue[0]
			queue = queue[1:]
			remain[dep]--
			if remain[dep] > 0 {
				continue
			}
			bad := false
			for _, d := range deps[dep] {
				if tainted[d] {
					bad = true
					break
				}
			}
			if bad {
				tainted[dep] = true
				res.Skipped = append(res.Skipped, dep)
				pending--
				queue = append(queue, dependents[dep]...)
				continue
			}
			ready <- dep
		}
		if pending == 0 {
			close(ready)
		}
	}

	mu.Lock()
	for _, id := range order {
		remain[id] = len(deps[id])
	}
	for _, id := range order {
		if remain[id] == 0 {
			ready <- id
		}
	}
	mu.Unlock()

	workers := e.maxWorkers
	if workers > len(order) {
		workers = len(order)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ready {
				finish(id, e.evaluateNode(ctx, id, strategy))
			}
		}()
	}
	wg.Wait()

	res.Duration = time.Since(start)
	compose.Logger().Debug("evaluation pass finished",
		"completed", len(res.Completed),
		"failed", len(res.Failed),
		"skipped", len(res.Skipped),
		"took", res.Duration)
	return res
}

// ProcessNode evaluates one node and the upstream chain it depends on,
// sequentially in dependency order. Used for targeted refreshes where a
// full pass is wasteful.
func (e *Evaluator) ProcessNode(ctx context.Context, id graph.NodeID) error {
	if e.g.Node(id) == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	// Restrict the topological order to the node's ancestors.
	needed := map[graph.NodeID]struct{}{id: {}}
	stack := []graph.NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, up := range e.g.Upstream(cur) {
			if _, ok := needed[up]; ok {
				continue
			}
			needed[up] = struct{}{}
			stack = append(stack, up)
		}
	}

	strategy := e.effectiveStrategy()
	for _, nid := range e.TopoOrder() {
		if _, ok := needed[nid]; !ok {
			continue
		}
		if err := e.evaluateNode(ctx, nid, strategy); err != nil {
			return fmt.Errorf("eval: node %s: %w", nid, err)
		}
	}
	return nil
}
