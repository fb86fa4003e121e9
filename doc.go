// Package compose provides the core types for a node-based compositing
// engine: immutable CPU images, adaptive CPU/GPU strategy selection, and
// engine configuration.
//
// The engine itself is assembled from the subpackages:
//
//   - graph: the node/port/connection data model with structural validation
//   - gpu: the texture pool and the dual CPU/GPU buffer representation
//   - backend: the per-node processing contract and processor registry
//   - eval: topological graph evaluation with incremental recomputation
//   - engine: the single-writer facade tying the pieces together
//
// A minimal session:
//
//	eng, err := engine.New(engine.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	src, _ := eng.AddNode(graph.KindSource)
//	blur, _ := eng.AddNode(graph.KindBlur)
//	view, _ := eng.AddNode(graph.KindViewer)
//	eng.ConnectPorts(src, "out0", blur, "in0")
//	eng.ConnectPorts(blur, "out0", view, "in0")
//
//	result, _ := eng.ProcessGraph(context.Background())
//	frame, _ := eng.GetOutput(view)
//
// By default compose produces no log output. Call [SetLogger] to enable
// structured logging for the engine and all its subpackages.
package compose
