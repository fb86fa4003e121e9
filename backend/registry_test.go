package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/gpu"
	"github.com/gogpu/compose/graph"
)

type stubProc struct {
	kind  graph.Kind
	err   error
	calls int
}

func (p *stubProc) Kind() graph.Kind { return p.kind }

func (p *stubProc) Process(context.Context, []*gpu.DualBuffer, graph.Params) (*gpu.DualBuffer, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return gpu.NewCPUBuffer(compose.NewImage(1, 1), nil)
}

func TestRegistryGPUFallback(t *testing.T) {
	reg := NewRegistry()
	cpuProc := &stubProc{kind: "x"}
	gpuProc := &stubProc{kind: "x", err: ErrFallbackToCPU}
	reg.RegisterCPU(cpuProc)
	reg.RegisterGPU(gpuProc)

	out, err := reg.Process(context.Background(), "x", compose.StrategyGPU, nil, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out == nil {
		t.Fatal("no output from fallback")
	}
	if gpuProc.calls != 1 || cpuProc.calls != 1 {
		t.Errorf("calls gpu=%d cpu=%d, want 1/1", gpuProc.calls, cpuProc.calls)
	}
}

func TestRegistryGPUSuccessSkipsCPU(t *testing.T) {
	reg := NewRegistry()
	cpuProc := &stubProc{kind: "x"}
	gpuProc := &stubProc{kind: "x"}
	reg.RegisterCPU(cpuProc)
	reg.RegisterGPU(gpuProc)

	if _, err := reg.Process(context.Background(), "x", compose.StrategyAuto, nil, nil); err != nil {
		t.Fatal(err)
	}
	if cpuProc.calls != 0 {
		t.Error("CPU processor must not run when GPU succeeds")
	}
}

func TestRegistryCPUStrategySkipsGPU(t *testing.T) {
	reg := NewRegistry()
	cpuProc := &stubProc{kind: "x"}
	gpuProc := &stubProc{kind: "x"}
	reg.RegisterCPU(cpuProc)
	reg.RegisterGPU(gpuProc)

	if _, err := reg.Process(context.Background(), "x", compose.StrategyCPU, nil, nil); err != nil {
		t.Fatal(err)
	}
	if gpuProc.calls != 0 {
		t.Error("GPU processor must not run under StrategyCPU")
	}
}

func TestRegistryGPURealErrorPropagates(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	reg.RegisterCPU(&stubProc{kind: "x"})
	reg.RegisterGPU(&stubProc{kind: "x", err: boom})

	if _, err := reg.Process(context.Background(), "x", compose.StrategyGPU, nil, nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom (no silent fallback on real errors)", err)
	}
}

func TestRegistryNoProcessor(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Process(context.Background(), "ghost", compose.StrategyAuto, nil, nil); !errors.Is(err, ErrNoProcessor) {
		t.Errorf("err = %v, want ErrNoProcessor", err)
	}
}

func TestRegistryKinds(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCPU(&stubProc{kind: "b"})
	reg.RegisterCPU(&stubProc{kind: "a"})
	reg.RegisterGPU(&stubProc{kind: "c"}) // GPU-only kinds are not listed

	kinds := reg.Kinds()
	if len(kinds) != 2 || kinds[0] != "a" || kinds[1] != "b" {
		t.Errorf("Kinds = %v, want [a b]", kinds)
	}
	if reg.HasGPU("b") || !reg.HasGPU("c") {
		t.Error("HasGPU mismatch")
	}
}
