package gpu

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/compose"
)

func TestDualBufferCPUToTexture(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	img := compose.NewImage(8, 8)
	buf, err := NewCPUBuffer(img, pool)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()

	if !buf.HasImage() || buf.HasTexture() {
		t.Error("fresh CPU buffer should have image only")
	}

	tex, err := buf.Texture(PriorityNormal)
	if err != nil {
		t.Fatalf("Texture: %v", err)
	}
	if tex.Width() != 8 || tex.Height() != 8 {
		t.Errorf("texture shape = %s, want 8x8", tex.Key())
	}
	if !buf.HasTexture() {
		t.Error("buffer should report texture after conversion")
	}

	// Second call returns the same texture without a second allocation.
	again, err := buf.Texture(PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if again != tex {
		t.Error("repeated conversion must return the cached texture")
	}
	if pool.Stats().TotalCreated != 1 {
		t.Errorf("TotalCreated = %d, want 1", pool.Stats().TotalCreated)
	}
}

func TestDualBufferGPUToImage(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	tex, err := pool.Acquire(4, 4, FormatRGBA8, PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	pix := make([]uint8, 64)
	pix[0] = 7
	if err := tex.Upload(compose.FromPixels(4, 4, pix)); err != nil {
		t.Fatal(err)
	}

	buf, err := NewGPUBuffer(tex, pool)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()

	img, err := buf.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if r, _, _, _ := img.PixelAt(0, 0); r != 7 {
		t.Errorf("downloaded pixel = %d, want 7", r)
	}

	again, err := buf.Image()
	if err != nil {
		t.Fatal(err)
	}
	if again != img {
		t.Error("repeated download must return the cached image")
	}
}

func TestDualBufferSingleFlight(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	buf, err := NewCPUBuffer(compose.NewImage(16, 16), pool)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()

	const callers = 16
	texs := make([]*Texture, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tex, err := buf.Texture(PriorityNormal)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			texs[i] = tex
		}(i)
	}
	wg.Wait()

	if created := pool.Stats().TotalCreated; created != 1 {
		t.Errorf("TotalCreated = %d, want exactly 1 (single flight)", created)
	}
	for i := 1; i < callers; i++ {
		if texs[i] != texs[0] {
			t.Fatal("concurrent callers must share one conversion result")
		}
	}
}

func TestDualBufferUploadFailureSticky(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Close()
	dev.SetMaxTextureDim(8)
	pool, err := NewTexturePool(dev, PoolOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	buf, err := NewCPUBuffer(compose.NewImage(16, 16), pool)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()

	if _, err := buf.Texture(PriorityNormal); err == nil {
		t.Fatal("oversized upload should fail")
	}
	// The failure is cached; no further device calls happen.
	if _, err := buf.Texture(PriorityNormal); err == nil {
		t.Fatal("failed conversion must stay failed")
	}
	// CPU access is unaffected.
	if _, err := buf.Image(); err != nil {
		t.Errorf("Image after failed upload: %v", err)
	}
}

func TestDualBufferCacheKey(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	img := compose.NewImage(4, 4)
	cpu, err := NewCPUBuffer(img, pool)
	if err != nil {
		t.Fatal(err)
	}
	defer cpu.Release()
	if cpu.CacheKey() != img.CacheKey() {
		t.Error("CPU buffer key must be the image key")
	}

	tex, _ := pool.Acquire(4, 4, FormatRGBA8, PriorityNormal)
	gpuBuf, err := NewGPUBuffer(tex, pool)
	if err != nil {
		t.Fatal(err)
	}
	defer gpuBuf.Release()
	if gpuBuf.CacheKey() != tex.CacheKey() {
		t.Error("GPU buffer key must be the texture key")
	}
	if gpuBuf.CacheKey() == cpu.CacheKey() {
		t.Error("distinct buffers must have distinct keys")
	}
}

func TestDualBufferReleaseTerminal(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	buf, err := NewCPUBuffer(compose.NewImage(4, 4), pool)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := buf.Texture(PriorityNormal); err != nil {
		t.Fatal(err)
	}

	buf.Release()
	buf.Release() // idempotent

	if pool.Stats().CurrentlyInUse != 0 {
		t.Error("release must return the texture to the pool")
	}
	if _, err := buf.Image(); !errors.Is(err, ErrBufferReleased) {
		t.Errorf("err = %v, want ErrBufferReleased", err)
	}
	if _, err := buf.Texture(PriorityNormal); !errors.Is(err, ErrBufferReleased) {
		t.Errorf("err = %v, want ErrBufferReleased", err)
	}
}

func TestDualBufferNilArguments(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	if _, err := NewCPUBuffer(nil, pool); !errors.Is(err, ErrNilImage) {
		t.Errorf("err = %v, want ErrNilImage", err)
	}
	if _, err := NewGPUBuffer(nil, pool); !errors.Is(err, ErrBufferEmpty) {
		t.Errorf("err = %v, want ErrBufferEmpty", err)
	}
}
