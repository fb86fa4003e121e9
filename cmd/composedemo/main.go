// Command composedemo builds a small compositing graph, processes it and
// writes the viewer output as a PNG.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/engine"
	"github.com/gogpu/compose/graph"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional TOML config file")
		output     = flag.String("output", "demo.png", "output file")
		dotPath    = flag.String("dot", "", "also write the graph in DOT format")
		radius     = flag.Float64("radius", 4, "blur radius")
	)
	flag.Parse()

	cfg := compose.DefaultConfig()
	if *configPath != "" {
		loaded, err := compose.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	eng, err := engine.New(engine.Options{Config: &cfg})
	if err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	defer eng.Close()

	view, err := buildDemoGraph(eng, *radius)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	res, err := eng.ProcessGraph(context.Background())
	if err != nil {
		log.Fatalf("Failed to process: %v", err)
	}
	if !res.OK() {
		log.Fatalf("Pass incomplete: %v", res.Err())
	}

	img, err := eng.GetOutput(view)
	if err != nil {
		log.Fatalf("Failed to read output: %v", err)
	}
	if err := img.SavePNG(*output); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	if *dotPath != "" {
		if err := os.WriteFile(*dotPath, []byte(eng.ExportDOT()), 0o644); err != nil {
			log.Fatalf("Failed to write DOT: %v", err)
		}
	}

	log.Printf("Demo saved to %s (%dx%d), %d nodes in %v\n",
		*output, img.Width(), img.Height(), len(res.Completed), res.Duration)
}

// buildDemoGraph wires two colored sources through a merge, a color
// correction and a blur into a viewer, returning the viewer id.
func buildDemoGraph(eng *engine.Engine, radius float64) (graph.NodeID, error) {
	red, err := eng.AddNode(graph.KindSource)
	if err != nil {
		return "", err
	}
	blue, err := eng.AddNode(graph.KindSource)
	if err != nil {
		return "", err
	}
	merge, err := eng.AddNode(graph.KindMerge)
	if err != nil {
		return "", err
	}
	corrector, err := eng.AddNode(graph.KindCorrector)
	if err != nil {
		return "", err
	}
	blur, err := eng.AddNode(graph.KindBlur)
	if err != nil {
		return "", err
	}
	view, err := eng.AddNode(graph.KindViewer)
	if err != nil {
		return "", err
	}

	eng.UpdateNodeParameter(red, "red", 0.9)
	eng.UpdateNodeParameter(blue, "blue", 0.9)
	eng.UpdateNodeParameter(blue, "alpha", 0.5)
	eng.UpdateNodeParameter(corrector, "saturation", 1.2)
	eng.UpdateNodeParameter(blur, "radius", radius)

	eng.MoveNode(red, 100, 100)
	eng.MoveNode(blue, 100, 300)
	eng.MoveNode(merge, 300, 200)
	eng.MoveNode(corrector, 500, 200)
	eng.MoveNode(blur, 700, 200)
	eng.MoveNode(view, 900, 200)

	for _, c := range []struct {
		from     graph.NodeID
		fromPort string
		to       graph.NodeID
		toPort   string
	}{
		{red, "out0", merge, "in0"},
		{blue, "out0", merge, "in0"},
		{merge, "out0", corrector, "in0"},
		{corrector, "out0", blur, "in0"},
		{blur, "out0", view, "in0"},
	} {
		if !eng.ConnectPorts(c.from, c.fromPort, c.to, c.toPort) {
			log.Fatalf("Failed to connect %s -> %s", c.from, c.to)
		}
	}
	return view, nil
}
