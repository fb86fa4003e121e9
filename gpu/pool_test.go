package gpu

import (
	"errors"
	"testing"
)

func newTestPool(t *testing.T, opts PoolOptions) (*TexturePool, *SoftwareDevice) {
	t.Helper()
	dev := NewSoftwareDevice()
	pool, err := NewTexturePool(dev, opts)
	if err != nil {
		t.Fatalf("NewTexturePool: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		dev.Close()
	})
	return pool, dev
}

func TestPoolAcquireRelease(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	tex, err := pool.Acquire(64, 64, FormatRGBA8, PriorityNormal)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if tex.Width() != 64 || tex.Height() != 64 || tex.Format() != FormatRGBA8 {
		t.Errorf("texture shape = %s, want 64x64/RGBA8", tex.Key())
	}

	stats := pool.Stats()
	if stats.TotalCreated != 1 || stats.CurrentlyInUse != 1 {
		t.Errorf("stats = %+v, want 1 created, 1 in use", stats)
	}

	pool.Release(tex)
	stats = pool.Stats()
	if stats.CurrentlyInUse != 0 || stats.CurrentlyInPool != 1 {
		t.Errorf("stats after release = %+v, want 0 in use, 1 pooled", stats)
	}
}

func TestPoolSequentialReuse(t *testing.T) {
	// Acquire 15 buffers of 64x64 with immediate release between each:
	// from the second acquire on, every one must be a reuse.
	pool, _ := newTestPool(t, PoolOptions{})

	for i := 0; i < 15; i++ {
		tex, err := pool.Acquire(64, 64, FormatRGBA8, PriorityNormal)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		pool.Release(tex)
	}

	stats := pool.Stats()
	if stats.TotalCreated != 1 {
		t.Errorf("TotalCreated = %d, want 1", stats.TotalCreated)
	}
	if stats.TotalReused != 14 {
		t.Errorf("TotalReused = %d, want 14", stats.TotalReused)
	}
	if stats.ReuseRatio <= 0 {
		t.Errorf("ReuseRatio = %v, want > 0", stats.ReuseRatio)
	}
}

func TestPoolReuseMatchesShape(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	a, _ := pool.Acquire(64, 64, FormatRGBA8, PriorityNormal)
	pool.Release(a)

	// Different shape must not reuse the pooled 64x64.
	b, _ := pool.Acquire(32, 32, FormatRGBA8, PriorityNormal)
	if pool.Stats().TotalReused != 0 {
		t.Error("mismatched shape must allocate, not reuse")
	}
	pool.Release(b)

	c, _ := pool.Acquire(64, 64, FormatRGBA8, PriorityNormal)
	if pool.Stats().TotalReused != 1 {
		t.Error("matching shape must reuse")
	}
	pool.Release(c)
}

func TestPoolGenerationBumpsOnReuse(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	a, _ := pool.Acquire(8, 8, FormatRGBA8, PriorityNormal)
	gen := a.Generation()
	key := a.CacheKey()
	pool.Release(a)

	b, _ := pool.Acquire(8, 8, FormatRGBA8, PriorityNormal)
	if b.Generation() <= gen {
		t.Error("generation must increase on reuse")
	}
	if b.CacheKey() == key {
		t.Error("cache key must change across tenants")
	}
	pool.Release(b)
}

func TestPoolBucketCap(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{BucketCap: 2})

	var texs []*Texture
	for i := 0; i < 4; i++ {
		tex, err := pool.Acquire(16, 16, FormatRGBA8, PriorityNormal)
		if err != nil {
			t.Fatal(err)
		}
		texs = append(texs, tex)
	}
	for _, tex := range texs {
		pool.Release(tex)
	}

	stats := pool.Stats()
	if stats.CurrentlyInPool != 2 {
		t.Errorf("CurrentlyInPool = %d, want bucket cap 2", stats.CurrentlyInPool)
	}
	if stats.Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", stats.Evictions)
	}
}

func TestPoolAllocationFailureRecoverable(t *testing.T) {
	pool, dev := newTestPool(t, PoolOptions{})
	dev.SetMaxTextureDim(64)

	tex, err := pool.Acquire(128, 128, FormatRGBA8, PriorityNormal)
	if err == nil {
		t.Fatal("oversized acquire should fail")
	}
	if tex != nil {
		t.Error("failed acquire must return nil texture")
	}
	if !errors.Is(err, ErrTextureTooLarge) {
		t.Errorf("err = %v, want ErrTextureTooLarge", err)
	}

	// The pool stays usable.
	ok, err := pool.Acquire(32, 32, FormatRGBA8, PriorityNormal)
	if err != nil {
		t.Fatalf("pool unusable after failed acquire: %v", err)
	}
	pool.Release(ok)
}

func TestPoolForceCleanupIdempotent(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	for i := 0; i < 3; i++ {
		tex, _ := pool.Acquire(32, 32, FormatRGBA8, PriorityNormal)
		pool.Release(tex)
	}

	for i := 0; i < 2; i++ {
		pool.ForceCleanup()
		stats := pool.Stats()
		if stats.CurrentlyInPool != 0 {
			t.Errorf("pass %d: CurrentlyInPool = %d, want 0", i, stats.CurrentlyInPool)
		}
		if stats.MemoryUsageEstimate != 0 {
			t.Errorf("pass %d: MemoryUsageEstimate = %d, want 0", i, stats.MemoryUsageEstimate)
		}
		if stats.TotalCreated != 0 || stats.TotalReused != 0 {
			t.Errorf("pass %d: counters not reset: %+v", i, stats)
		}
	}
}

func TestPoolAdaptiveCleanupEvictsLowPriorityFirst(t *testing.T) {
	// Budget of 1 MB with a low threshold; 256x256 RGBA textures are
	// 256 KB each, so four of them exceed the threshold.
	pool, _ := newTestPool(t, PoolOptions{BudgetMB: 1, EvictionThreshold: 0.5})

	low1, _ := pool.Acquire(256, 256, FormatRGBA8, PriorityLow)
	low2, _ := pool.Acquire(256, 256, FormatRGBA8, PriorityLow)
	high, _ := pool.Acquire(256, 256, FormatRGBA8, PriorityHigh)
	disp, _ := pool.Acquire(256, 256, FormatRGBA8, PriorityDisplay)
	pool.Release(low1)
	pool.Release(low2)
	pool.Release(high)
	pool.Release(disp)

	before := pool.Stats().CurrentlyInPool
	pool.AdaptiveCleanup()
	after := pool.Stats()

	if after.CurrentlyInPool > before {
		t.Error("adaptive cleanup must never grow the pool")
	}
	if after.CurrentlyInPool >= before {
		t.Errorf("expected evictions, pool still holds %d", after.CurrentlyInPool)
	}

	// The display and high entries survive while low entries are eligible.
	a, _ := pool.Acquire(256, 256, FormatRGBA8, PriorityNormal)
	b, _ := pool.Acquire(256, 256, FormatRGBA8, PriorityNormal)
	if pool.Stats().TotalReused < 2 {
		t.Error("high and display entries should have survived cleanup")
	}
	pool.Release(a)
	pool.Release(b)
}

func TestPoolSetPriority(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	tex, _ := pool.Acquire(8, 8, FormatRGBA8, PriorityLow)
	pool.SetPriority(tex, PriorityDisplay)
	if tex.Priority() != PriorityDisplay {
		t.Errorf("Priority = %v, want display", tex.Priority())
	}
	pool.Release(tex)
}

func TestPoolClosedAcquire(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Close()
	pool, err := NewTexturePool(dev, PoolOptions{})
	if err != nil {
		t.Fatal(err)
	}
	pool.Close()

	if _, err := pool.Acquire(8, 8, FormatRGBA8, PriorityNormal); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", err)
	}
}

func TestPoolNilDevice(t *testing.T) {
	if _, err := NewTexturePool(nil, PoolOptions{}); !errors.Is(err, ErrNilDevice) {
		t.Errorf("err = %v, want ErrNilDevice", err)
	}
}
