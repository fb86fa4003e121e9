package graph

import (
	"fmt"
	"sync"
)

// EventKind classifies a graph change notification.
type EventKind uint8

const (
	// EventStructureChanged fires on node or connection add/remove.
	// Subscribers should treat all cached node outputs as stale.
	EventStructureChanged EventKind = iota

	// EventNodeOutputChanged fires when a single node's output source
	// changed (parameter update, new source media) without any structural
	// change. Only the node and its downstream set are stale.
	EventNodeOutputChanged

	// EventNodeMoved fires on position updates. Pure metadata; never
	// triggers recomputation.
	EventNodeMoved
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStructureChanged:
		return "structure-changed"
	case EventNodeOutputChanged:
		return "node-output-changed"
	case EventNodeMoved:
		return "node-moved"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Event is a discrete graph change notification.
type Event struct {
	// Kind classifies the change.
	Kind EventKind

	// Node identifies the affected node for EventNodeOutputChanged and
	// EventNodeMoved. Empty for structural events.
	Node NodeID
}

// notifier delivers events synchronously to a subscriber list.
// Mutations and subscriptions may come from different goroutines during
// setup, so the list itself is locked; delivery happens outside the lock.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// subscribe registers a callback and returns an unsubscribe function.
func (n *notifier) subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Event))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// publish delivers an event to all current subscribers.
func (n *notifier) publish(ev Event) {
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
