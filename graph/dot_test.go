package graph

import (
	"context"
	"strings"
	"testing"
)

func TestToDOT(t *testing.T) {
	g, src, blur, _ := buildChain(t)

	dot := ToDOT(g)
	if !strings.HasPrefix(dot, "digraph compose {") {
		t.Errorf("unexpected header: %q", dot[:min(len(dot), 40)])
	}
	if !strings.Contains(dot, string(src.ID)) || !strings.Contains(dot, string(blur.ID)) {
		t.Error("DOT output missing node ids")
	}
	if !strings.Contains(dot, "out0 > in0") {
		t.Error("DOT output missing edge port labels")
	}
	if ToDOT(g) != dot {
		t.Error("DOT output must be deterministic")
	}
}

func TestRenderSVG(t *testing.T) {
	g, _, _, _ := buildChain(t)

	svg, err := RenderSVG(context.Background(), g)
	if err != nil {
		t.Skipf("graphviz unavailable: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("output is not SVG")
	}
}
