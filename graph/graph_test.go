package graph

import (
	"testing"
)

// buildChain constructs source -> blur -> viewer and returns the graph
// and the three nodes.
func buildChain(t *testing.T) (*Graph, *Node, *Node, *Node) {
	t.Helper()
	reg := DefaultRegistry()
	g := New()

	src := mustNew(t, reg, KindSource)
	blur := mustNew(t, reg, KindBlur)
	view := mustNew(t, reg, KindViewer)
	g.AddNode(src)
	g.AddNode(blur)
	g.AddNode(view)

	if !g.Connect(src.ID, "out0", blur.ID, "in0") {
		t.Fatal("connect source -> blur failed")
	}
	if !g.Connect(blur.ID, "out0", view.ID, "in0") {
		t.Fatal("connect blur -> viewer failed")
	}
	return g, src, blur, view
}

func mustNew(t *testing.T, reg *Registry, kind Kind) *Node {
	t.Helper()
	n, err := reg.New(kind)
	if err != nil {
		t.Fatalf("new %s: %v", kind, err)
	}
	return n
}

func TestAddNodeDuplicate(t *testing.T) {
	g := New()
	n := mustNew(t, DefaultRegistry(), KindSource)
	if !g.AddNode(n) {
		t.Fatal("first add failed")
	}
	if g.AddNode(n) {
		t.Error("adding the same node twice should fail")
	}
	if g.NumNodes() != 1 {
		t.Errorf("NumNodes = %d, want 1", g.NumNodes())
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	g, _, blur, _ := buildChain(t)

	if !g.RemoveNode(blur.ID) {
		t.Fatal("remove failed")
	}
	if g.NumConnections() != 0 {
		t.Errorf("NumConnections = %d, want 0 after cascade", g.NumConnections())
	}
	for _, c := range g.Connections() {
		if c.FromNode == blur.ID || c.ToNode == blur.ID {
			t.Errorf("connection %s still references removed node", c.ID)
		}
	}
}

func TestRemoveNodeCleansNeighborMirrors(t *testing.T) {
	g, src, blur, _ := buildChain(t)
	g.RemoveNode(blur.ID)

	if n := len(src.OutputConnections()); n != 0 {
		t.Errorf("source still lists %d output connections", n)
	}
}

func TestSelfLoopRejected(t *testing.T) {
	g := New()
	blur := mustNew(t, DefaultRegistry(), KindBlur)
	g.AddNode(blur)

	if g.Connect(blur.ID, "out0", blur.ID, "in0") {
		t.Error("self-loop must be rejected")
	}
	if g.NumConnections() != 0 {
		t.Error("rejected connection must not mutate the graph")
	}
}

func TestCycleRejected(t *testing.T) {
	reg := DefaultRegistry()
	g := New()
	a := mustNew(t, reg, KindBlur)
	b := mustNew(t, reg, KindBlur)
	c := mustNew(t, reg, KindBlur)
	g.AddNode(a)
	g.AddNode(b)
	g.AddNode(c)
	g.Connect(a.ID, "out0", b.ID, "in0")
	g.Connect(b.ID, "out0", c.ID, "in0")

	before := g.NumConnections()
	if g.Connect(c.ID, "out0", a.ID, "in0") {
		t.Error("closing a cycle must be rejected")
	}
	if g.NumConnections() != before {
		t.Error("rejected connection must leave the connection set unchanged")
	}
	if res := g.Validate(c.ID, "out0", a.ID, "in0"); res != ValidationCycle {
		t.Errorf("Validate = %v, want %v", res, ValidationCycle)
	}
}

func TestReplaceOnExclusiveInput(t *testing.T) {
	reg := DefaultRegistry()
	g := New()
	s1 := mustNew(t, reg, KindSource)
	s2 := mustNew(t, reg, KindSource)
	blur := mustNew(t, reg, KindBlur)
	g.AddNode(s1)
	g.AddNode(s2)
	g.AddNode(blur)

	if !g.Connect(s1.ID, "out0", blur.ID, "in0") {
		t.Fatal("first connect failed")
	}
	if !g.Connect(s2.ID, "out0", blur.ID, "in0") {
		t.Fatal("second connect should replace, not reject")
	}

	conns := g.ConnectionsInto(blur.ID, "in0")
	if len(conns) != 1 {
		t.Fatalf("exclusive input holds %d connections, want 1", len(conns))
	}
	if conns[0].FromNode != s2.ID {
		t.Error("surviving connection should come from the second source")
	}
	if len(s1.OutputConnections()) != 0 {
		t.Error("replaced connection still mirrored on the first source")
	}
}

func TestMultiInputAllowsSeveral(t *testing.T) {
	reg := DefaultRegistry()
	g := New()
	s1 := mustNew(t, reg, KindSource)
	s2 := mustNew(t, reg, KindSource)
	merge := mustNew(t, reg, KindMerge)
	g.AddNode(s1)
	g.AddNode(s2)
	g.AddNode(merge)

	g.Connect(s1.ID, "out0", merge.ID, "in0")
	g.Connect(s2.ID, "out0", merge.ID, "in0")

	if n := len(g.ConnectionsInto(merge.ID, "in0")); n != 2 {
		t.Errorf("multi input holds %d connections, want 2", n)
	}
}

func TestRemoveConnectionsToPort(t *testing.T) {
	g, _, blur, _ := buildChain(t)
	if n := g.RemoveConnectionsToPort(blur.ID, "in0"); n != 1 {
		t.Errorf("removed %d connections, want 1", n)
	}
	if g.ConnectionInto(blur.ID, "in0") != nil {
		t.Error("port still connected after removal")
	}
}

func TestUpstreamDownstream(t *testing.T) {
	g, src, blur, view := buildChain(t)

	up := g.Upstream(blur.ID)
	if len(up) != 1 || up[0] != src.ID {
		t.Errorf("Upstream(blur) = %v, want [%s]", up, src.ID)
	}

	down := g.Downstream(src.ID)
	found := map[NodeID]bool{}
	for _, id := range down {
		found[id] = true
	}
	if !found[blur.ID] || !found[view.ID] {
		t.Errorf("Downstream(source) = %v, want blur and viewer", down)
	}
	if found[src.ID] {
		t.Error("Downstream must not include the node itself")
	}
}

func TestEvents(t *testing.T) {
	g, src, blur, _ := buildChain(t)

	var got []Event
	unsub := g.Subscribe(func(ev Event) { got = append(got, ev) })
	defer unsub()

	g.MoveNode(src.ID, Position{X: 10, Y: 20})
	g.UpdateNodeParameter(blur.ID, "radius", 5.0)
	g.RemoveNode(blur.ID)

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3: %v", len(got), got)
	}
	if got[0].Kind != EventNodeMoved {
		t.Errorf("event 0 = %v, want move", got[0].Kind)
	}
	if got[1].Kind != EventNodeOutputChanged || got[1].Node != blur.ID {
		t.Errorf("event 1 = %v/%s, want output change on blur", got[1].Kind, got[1].Node)
	}
	if got[2].Kind != EventStructureChanged {
		t.Errorf("event 2 = %v, want structure change", got[2].Kind)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	g := New()
	n := 0
	unsub := g.Subscribe(func(Event) { n++ })
	unsub()

	g.AddNode(mustNew(t, DefaultRegistry(), KindSource))
	if n != 0 {
		t.Errorf("received %d events after unsubscribe", n)
	}
}

func TestMoveNodeDoesNotTouchStructure(t *testing.T) {
	g, src, _, _ := buildChain(t)

	structural := 0
	unsub := g.Subscribe(func(ev Event) {
		if ev.Kind == EventStructureChanged || ev.Kind == EventNodeOutputChanged {
			structural++
		}
	})
	defer unsub()

	g.MoveNode(src.ID, Position{X: 1, Y: 1})
	if structural != 0 {
		t.Error("MoveNode must not publish recompute-triggering events")
	}
}
