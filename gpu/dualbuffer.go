package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/compose"
)

// Dual buffer errors.
var (
	// ErrBufferReleased is returned when using a buffer after Release.
	ErrBufferReleased = errors.New("gpu: buffer released")

	// ErrBufferEmpty is returned when a buffer holds neither representation.
	ErrBufferEmpty = errors.New("gpu: buffer has no backing data")

	// ErrNoPool is returned when a CPU-only buffer is asked for a texture
	// but has no pool to allocate from.
	ErrNoPool = errors.New("gpu: buffer has no texture pool")
)

// DualBuffer holds image data in up to two representations, a CPU image
// and a GPU texture, converting lazily on first demand. Each direction
// converts at most once per buffer lifetime; concurrent callers share a
// single conversion via sync.Once and all observe its result, success or
// error alike.
//
// A buffer starts with exactly one representation. Release is terminal:
// it returns the texture to the pool and any later access fails with
// ErrBufferReleased.
type DualBuffer struct {
	pool *TexturePool

	img *compose.Image
	tex *Texture

	// Upload direction (image to texture), single flight.
	upOnce sync.Once
	upTex  *Texture
	upErr  error

	// Download direction (texture to image), single flight.
	downOnce sync.Once
	downImg  *compose.Image
	downErr  error

	mu       sync.Mutex
	released bool
}

// NewCPUBuffer wraps a CPU image. The pool may be nil for buffers that
// will never need a GPU representation (pure CPU pipelines).
func NewCPUBuffer(img *compose.Image, pool *TexturePool) (*DualBuffer, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	return &DualBuffer{img: img, pool: pool}, nil
}

// NewGPUBuffer wraps a pool-owned texture. The buffer takes ownership:
// Release returns the texture to the pool.
func NewGPUBuffer(tex *Texture, pool *TexturePool) (*DualBuffer, error) {
	if tex == nil {
		return nil, ErrBufferEmpty
	}
	if pool == nil {
		return nil, ErrNoPool
	}
	return &DualBuffer{tex: tex, pool: pool}, nil
}

// Width returns the pixel width of the buffer contents.
func (b *DualBuffer) Width() int {
	if b.img != nil {
		return b.img.Width()
	}
	if b.tex != nil {
		return b.tex.Width()
	}
	return 0
}

// Height returns the pixel height of the buffer contents.
func (b *DualBuffer) Height() int {
	if b.img != nil {
		return b.img.Height()
	}
	if b.tex != nil {
		return b.tex.Height()
	}
	return 0
}

// HasImage reports whether a CPU representation exists without forcing a
// conversion.
func (b *DualBuffer) HasImage() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img != nil || b.downImg != nil
}

// HasTexture reports whether a GPU representation exists without forcing
// a conversion.
func (b *DualBuffer) HasTexture() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tex != nil || b.upTex != nil
}

// Image returns the CPU representation, downloading from the texture on
// first call if the buffer is GPU-only. The conversion runs once; a
// download failure is sticky for the buffer's lifetime.
func (b *DualBuffer) Image() (*compose.Image, error) {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil, ErrBufferReleased
	}
	if b.img != nil {
		img := b.img
		b.mu.Unlock()
		return img, nil
	}
	tex := b.tex
	b.mu.Unlock()

	if tex == nil {
		return nil, ErrBufferEmpty
	}

	b.downOnce.Do(func() {
		img, err := tex.Download()
		if err != nil {
			b.downErr = fmt.Errorf("gpu: buffer download: %w", err)
			return
		}
		b.mu.Lock()
		b.downImg = img
		b.mu.Unlock()
	})
	if b.downErr != nil {
		return nil, b.downErr
	}
	return b.downImg, nil
}

// Texture returns the GPU representation, uploading the image through
// the pool on first call if the buffer is CPU-only. The conversion runs
// once; an upload failure is sticky for the buffer's lifetime.
//
// The uploaded texture is pool-owned and returned on Release.
func (b *DualBuffer) Texture(priority Priority) (*Texture, error) {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil, ErrBufferReleased
	}
	if b.tex != nil {
		tex := b.tex
		b.mu.Unlock()
		return tex, nil
	}
	img := b.img
	b.mu.Unlock()

	if img == nil {
		return nil, ErrBufferEmpty
	}
	if b.pool == nil {
		return nil, ErrNoPool
	}

	b.upOnce.Do(func() {
		tex, err := b.pool.Acquire(img.Width(), img.Height(), FormatRGBA8, priority)
		if err != nil {
			b.upErr = fmt.Errorf("gpu: buffer upload: %w", err)
			return
		}
		if err := tex.Upload(img); err != nil {
			b.pool.Release(tex)
			b.upErr = fmt.Errorf("gpu: buffer upload: %w", err)
			return
		}
		b.mu.Lock()
		b.upTex = tex
		b.mu.Unlock()
	})
	if b.upErr != nil {
		return nil, b.upErr
	}
	return b.upTex, nil
}

// CacheKey returns a stable content key: the image hash for CPU-backed
// buffers, the texture id and generation for GPU-backed ones.
func (b *DualBuffer) CacheKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img != nil {
		return b.img.CacheKey()
	}
	if b.tex != nil {
		return b.tex.CacheKey()
	}
	return "buf:empty"
}

// Release returns pool-owned textures and marks the buffer unusable.
// Idempotent; later Image or Texture calls fail with ErrBufferReleased.
func (b *DualBuffer) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	tex := b.tex
	up := b.upTex
	b.tex = nil
	b.upTex = nil
	b.img = nil
	b.downImg = nil
	b.mu.Unlock()

	if b.pool != nil {
		if tex != nil {
			b.pool.Release(tex)
		}
		if up != nil {
			b.pool.Release(up)
		}
	}
}
