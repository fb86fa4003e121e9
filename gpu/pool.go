package gpu

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gogpu/compose"
)

// Pool errors.
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = errors.New("gpu: texture pool closed")

	// ErrNilDevice is returned when creating a pool without a device.
	ErrNilDevice = errors.New("gpu: device is nil")
)

// bytesPerMB is the number of bytes in a megabyte.
const bytesPerMB = 1024 * 1024

// PoolStats contains texture pool statistics.
type PoolStats struct {
	// TotalCreated is the number of device allocations performed.
	TotalCreated uint64

	// TotalReused is the number of acquires served from the free lists.
	TotalReused uint64

	// CurrentlyInUse is the number of textures handed out and not yet
	// released.
	CurrentlyInUse int

	// CurrentlyInPool is the number of free textures retained for reuse.
	CurrentlyInPool int

	// ReuseRatio is TotalReused / (TotalCreated + TotalReused).
	ReuseRatio float64

	// MemoryUsageEstimate is the total bytes held by pool-owned textures,
	// free and in-use.
	MemoryUsageEstimate uint64

	// PressureEstimate is MemoryUsageEstimate over the configured budget
	// (0.0 to 1.0+). Feed this into compose.Recommend.
	PressureEstimate float64

	// Evictions is the number of free textures discarded by cleanup or
	// free-list caps.
	Evictions uint64
}

// String returns a human-readable summary of the stats.
func (s PoolStats) String() string {
	return fmt.Sprintf("Pool[%.0f%% reuse, %d in use, %d pooled, %d MB, pressure %.2f]",
		s.ReuseRatio*100,
		s.CurrentlyInUse,
		s.CurrentlyInPool,
		s.MemoryUsageEstimate/bytesPerMB,
		s.PressureEstimate)
}

// PoolOptions configures a TexturePool.
type PoolOptions struct {
	// BudgetMB is the memory budget in megabytes.
	// Defaults to compose.DefaultPoolBudgetMB if <= 0.
	BudgetMB int

	// BucketCap caps each bucket's free list.
	// Defaults to compose.DefaultBucketCap if <= 0.
	BucketCap int

	// EvictionThreshold is the utilization fraction at which
	// AdaptiveCleanup starts trimming (0.0 to 1.0).
	// Defaults to compose.DefaultEvictionThreshold if out of range.
	EvictionThreshold float64
}

// TexturePool is a keyed pool of device textures. Allocation is the
// expensive operation and reuse validation is cheap (a shape/format
// match), so the pool optimizes for reuse ratio rather than strict LRU.
// Priorities exist because some textures (the displayed frame) must
// survive cleanup passes that reclaim speculative work.
//
// TexturePool is safe for concurrent use; a single mutex guards all
// operations, which are map lookups and slice edits.
type TexturePool struct {
	mu     sync.Mutex
	device Device

	buckets map[TextureKey][]*Texture
	inUse   map[*Texture]struct{}

	bucketCap         int
	budgetBytes       uint64
	evictionThreshold float64

	totalCreated uint64
	totalReused  uint64
	evictions    uint64
	freeBytes    uint64
	inUseBytes   uint64
	nextGen      uint64

	closed bool
}

// NewTexturePool creates a pool allocating from the given device.
func NewTexturePool(device Device, opts PoolOptions) (*TexturePool, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	budget := opts.BudgetMB
	if budget <= 0 {
		budget = compose.DefaultPoolBudgetMB
	}
	cap := opts.BucketCap
	if cap <= 0 {
		cap = compose.DefaultBucketCap
	}
	threshold := opts.EvictionThreshold
	if threshold <= 0 || threshold > 1.0 {
		threshold = compose.DefaultEvictionThreshold
	}
	return &TexturePool{
		device:            device,
		buckets:           make(map[TextureKey][]*Texture),
		inUse:             make(map[*Texture]struct{}),
		bucketCap:         cap,
		budgetBytes:       uint64(budget) * bytesPerMB, //nolint:gosec // G115: budget > 0
		evictionThreshold: threshold,
	}, nil
}

// Device returns the underlying device.
func (p *TexturePool) Device() Device { return p.device }

// Acquire returns a texture of the requested shape, reusing a pooled one
// when available and allocating otherwise. The requested priority is
// recorded on the texture either way.
//
// Returns nil and an error when device allocation fails (e.g. the size
// exceeds device limits); callers must treat that as recoverable.
func (p *TexturePool) Acquire(width, height int, format TextureFormat, priority Priority) (*Texture, error) {
	key := TextureKey{Width: width, Height: height, Format: format}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if free := p.buckets[key]; len(free) > 0 {
		// Most recently released first: its device memory is warmest.
		t := free[len(free)-1]
		p.buckets[key] = free[:len(free)-1]

		p.inUse[t] = struct{}{}
		p.totalReused++
		p.freeBytes -= t.SizeBytes()
		p.inUseBytes += t.SizeBytes()
		p.nextGen++
		t.generation = p.nextGen
		t.priority = priority
		t.lastUsed = time.Now()
		p.mu.Unlock()

		compose.Logger().Debug("texture pool reuse", "key", key.String(), "priority", priority.String())
		return t, nil
	}
	p.mu.Unlock()

	// Allocate outside the lock; device calls can be slow.
	id, err := p.device.CreateTexture(width, height, format, "pool:"+key.String())
	if err != nil {
		return nil, fmt.Errorf("gpu: pool acquire %s: %w", key, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.device.DestroyTexture(id)
		return nil, ErrPoolClosed
	}
	p.nextGen++
	t := &Texture{
		id:         id,
		device:     p.device,
		key:        key,
		priority:   priority,
		lastUsed:   time.Now(),
		generation: p.nextGen,
	}
	p.inUse[t] = struct{}{}
	p.totalCreated++
	p.inUseBytes += t.SizeBytes()
	p.mu.Unlock()

	compose.Logger().Debug("texture pool alloc", "key", key.String(), "priority", priority.String())
	return t, nil
}

// Release returns a texture to its bucket's free list. When the free
// list is already at capacity the texture is destroyed instead, to bound
// pool memory. Releasing a texture the pool did not hand out is a no-op
// logged at Warn.
func (p *TexturePool) Release(t *Texture) {
	if t == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.inUse[t]; !ok {
		p.mu.Unlock()
		compose.Logger().Warn("texture pool release of unknown texture", "key", t.key.String())
		return
	}
	delete(p.inUse, t)
	p.inUseBytes -= t.SizeBytes()

	if p.closed || len(p.buckets[t.key]) >= p.bucketCap {
		p.evictions++
		p.mu.Unlock()
		p.device.DestroyTexture(t.id)
		return
	}

	t.lastUsed = time.Now()
	p.buckets[t.key] = append(p.buckets[t.key], t)
	p.freeBytes += t.SizeBytes()
	p.mu.Unlock()
}

// SetPriority updates a texture's retained priority without reallocation.
func (p *TexturePool) SetPriority(t *Texture, priority Priority) {
	if t == nil {
		return
	}
	p.mu.Lock()
	t.priority = priority
	p.mu.Unlock()
}

// AdaptiveCleanup trims the free lists under memory pressure. Free
// textures are discarded lowest priority first, least recently touched
// first within a priority, until usage drops below the eviction
// threshold. PriorityDisplay entries are never discarded here and
// PriorityHigh entries only when everything below them is gone, so a
// minimum high-priority working set survives.
func (p *TexturePool) AdaptiveCleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	target := uint64(float64(p.budgetBytes) * p.evictionThreshold)
	if p.freeBytes+p.inUseBytes <= target {
		return
	}

	// Flatten the free lists into eviction order.
	type candidate struct {
		tex *Texture
	}
	var all []candidate
	for _, free := range p.buckets {
		for _, t := range free {
			all = append(all, candidate{tex: t})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].tex, all[j].tex
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.lastUsed.Before(b.lastUsed)
	})

	evicted := 0
	for _, c := range all {
		if p.freeBytes+p.inUseBytes <= target {
			break
		}
		t := c.tex
		if t.priority >= PriorityDisplay {
			break // sorted order: only display entries remain
		}
		if t.priority >= PriorityHigh && p.freeBytes+p.inUseBytes <= p.budgetBytes {
			// High-priority working set survives unless the hard budget
			// itself is exceeded.
			continue
		}
		p.removeFreeLocked(t)
		p.device.DestroyTexture(t.id)
		p.evictions++
		evicted++
	}

	if evicted > 0 {
		compose.Logger().Debug("texture pool adaptive cleanup",
			"evicted", evicted, "free_bytes", p.freeBytes)
	}
}

// ForceCleanup unconditionally empties all free lists and resets the
// counters. In-use textures stay valid; they are destroyed on release
// since their buckets no longer retain entries only if over cap.
// Idempotent: calling it twice leaves the pool empty both times.
func (p *TexturePool) ForceCleanup() {
	p.mu.Lock()
	var doomed []*Texture
	for key, free := range p.buckets {
		doomed = append(doomed, free...)
		delete(p.buckets, key)
	}
	p.freeBytes = 0
	p.totalCreated = 0
	p.totalReused = 0
	p.evictions = 0
	p.mu.Unlock()

	for _, t := range doomed {
		p.device.DestroyTexture(t.id)
	}
}

// Close force-cleans the pool and refuses further acquires.
func (p *TexturePool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.ForceCleanup()
}

// Stats returns current pool statistics.
func (p *TexturePool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := 0
	for _, bucket := range p.buckets {
		free += len(bucket)
	}

	var reuseRatio float64
	if total := p.totalCreated + p.totalReused; total > 0 {
		reuseRatio = float64(p.totalReused) / float64(total)
	}
	usage := p.freeBytes + p.inUseBytes
	var pressure float64
	if p.budgetBytes > 0 {
		pressure = float64(usage) / float64(p.budgetBytes)
	}

	return PoolStats{
		TotalCreated:        p.totalCreated,
		TotalReused:         p.totalReused,
		CurrentlyInUse:      len(p.inUse),
		CurrentlyInPool:     free,
		ReuseRatio:          reuseRatio,
		MemoryUsageEstimate: usage,
		PressureEstimate:    pressure,
		Evictions:           p.evictions,
	}
}

// removeFreeLocked removes a texture from its bucket's free list.
// Caller must hold mu.
func (p *TexturePool) removeFreeLocked(t *Texture) {
	free := p.buckets[t.key]
	for i, other := range free {
		if other == t {
			p.buckets[t.key] = append(free[:i], free[i+1:]...)
			p.freeBytes -= t.SizeBytes()
			return
		}
	}
}
