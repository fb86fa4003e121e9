package graph

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	g, src, blur, view := buildChain(t)
	g.UpdateNodeParameter(blur.ID, "radius", 7.5)
	g.MoveNode(src.ID, Position{X: 100, Y: 100})

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	loaded, err := FromJSON(data, DefaultRegistry())
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if loaded.NumNodes() != 3 || loaded.NumConnections() != 2 {
		t.Fatalf("loaded %d nodes / %d connections, want 3 / 2",
			loaded.NumNodes(), loaded.NumConnections())
	}
	if n := loaded.Node(blur.ID); n == nil || n.Params.Float("radius", -1) != 7.5 {
		t.Error("blur parameters not preserved")
	}
	if n := loaded.Node(src.ID); n == nil || n.Position.X != 100 {
		t.Error("source position not preserved")
	}
	if loaded.ConnectionInto(view.ID, "in0") == nil {
		t.Error("viewer input connection not preserved")
	}
}

func TestJSONDeterministic(t *testing.T) {
	g, _, _, _ := buildChain(t)
	a, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("marshaling the same graph twice must be byte-identical")
	}
}

func TestFromJSONUnknownKind(t *testing.T) {
	doc := `{"nodes":[{"id":"n1","kind":"hologram"}],"connections":[]}`
	if _, err := FromJSON([]byte(doc), DefaultRegistry()); err == nil {
		t.Error("unknown kind must be rejected")
	}
}

func TestFromJSONRejectsSmuggledCycle(t *testing.T) {
	doc := `{
		"nodes": [
			{"id": "a", "kind": "blur"},
			{"id": "b", "kind": "blur"}
		],
		"connections": [
			{"from_node": "a", "from_port": "out0", "to_node": "b", "to_port": "in0"},
			{"from_node": "b", "from_port": "out0", "to_node": "a", "to_port": "in0"}
		]
	}`
	_, err := FromJSON([]byte(doc), DefaultRegistry())
	if err == nil {
		t.Fatal("cyclic document must be rejected")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error should mention the cycle: %v", err)
	}
}

func TestLoadJSONReplacesContents(t *testing.T) {
	g, _, _, _ := buildChain(t)
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}

	other := New()
	other.AddNode(mustNew(t, DefaultRegistry(), KindMerge))
	if err := other.LoadJSON(data, DefaultRegistry()); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if other.NumNodes() != 3 {
		t.Errorf("NumNodes = %d, want 3 (old contents replaced)", other.NumNodes())
	}
}
