package graph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
)

// ToDOT converts the graph to Graphviz DOT format for debug inspection.
// Nodes are labelled with their kind; edges with the port pair they join.
// Output is deterministic: nodes and connections are emitted in ID order.
func ToDOT(g *Graph) string {
	var buf bytes.Buffer
	buf.WriteString("digraph compose {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		label := fmt.Sprintf("%s\\n%s", n.Kind, shortID(string(n.ID)))
		fmt.Fprintf(&buf, "  %q [label=%q];\n", n.ID, label)
	}

	buf.WriteString("\n")
	for _, c := range g.Connections() {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n",
			c.FromNode, c.ToNode, c.FromPort+" > "+c.ToPort)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the graph to an SVG document via Graphviz.
func RenderSVG(ctx context.Context, g *Graph) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer func() {
		_ = gv.Close()
	}()

	parsed, err := graphviz.ParseBytes([]byte(ToDOT(g)))
	if err != nil {
		return nil, fmt.Errorf("parse dot: %w", err)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, parsed, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	return buf.Bytes(), nil
}

// shortID abbreviates a uuid for node labels.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
