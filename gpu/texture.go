package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/compose"
)

// Texture errors.
var (
	// ErrTextureSizeMismatch is returned when image size doesn't match the texture.
	ErrTextureSizeMismatch = errors.New("gpu: image size does not match texture")

	// ErrNilImage is returned when uploading a nil image.
	ErrNilImage = errors.New("gpu: image is nil")
)

// Priority orders textures for eviction. Higher priorities survive
// adaptive cleanup passes that reclaim memory from speculative work.
type Priority uint8

const (
	// PriorityLow marks speculative or background work.
	PriorityLow Priority = iota

	// PriorityNormal is the default for regular node outputs.
	PriorityNormal

	// PriorityHigh marks textures near the display path.
	PriorityHigh

	// PriorityDisplay marks the currently displayed frame; never evicted
	// by adaptive cleanup.
	PriorityDisplay
)

// String returns a human-readable name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityDisplay:
		return "display"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// TextureKey identifies a bucket of interchangeable textures: any free
// texture with matching dimensions and format can serve an acquire.
type TextureKey struct {
	Width  int
	Height int
	Format TextureFormat
}

// SizeBytes returns the memory footprint of one texture of this shape.
func (k TextureKey) SizeBytes() uint64 {
	//nolint:gosec // G115: dimensions validated by the device on creation
	return uint64(k.Width) * uint64(k.Height) * uint64(k.Format.BytesPerPixel())
}

// String returns "WxH/FORMAT".
func (k TextureKey) String() string {
	return fmt.Sprintf("%dx%d/%s", k.Width, k.Height, k.Format)
}

// Texture is a pool-owned GPU buffer. Instances are handed out by
// TexturePool.Acquire and must be returned with TexturePool.Release;
// holding a *Texture after release is a use-after-free bug.
//
// The generation counter is bumped on every acquire, so cache keys
// derived from a texture never alias content from a previous tenant.
type Texture struct {
	id     TextureID
	device Device
	key    TextureKey
	label  string

	priority   Priority
	lastUsed   time.Time
	generation uint64
}

// ID returns the device handle.
func (t *Texture) ID() TextureID { return t.id }

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.key.Width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.key.Height }

// Format returns the pixel format.
func (t *Texture) Format() TextureFormat { return t.key.Format }

// Key returns the pool bucket key.
func (t *Texture) Key() TextureKey { return t.key }

// SizeBytes returns the texture's memory footprint.
func (t *Texture) SizeBytes() uint64 { return t.key.SizeBytes() }

// Priority returns the current eviction priority.
func (t *Texture) Priority() Priority { return t.priority }

// Generation returns the acquire generation, usable in cache keys.
func (t *Texture) Generation() uint64 { return t.generation }

// CacheKey returns a stable key for this texture's current contents.
func (t *Texture) CacheKey() string {
	return fmt.Sprintf("tex:%d:%d", t.id, t.generation)
}

// Upload copies an image into the texture. The image dimensions must
// match the texture shape exactly.
func (t *Texture) Upload(img *compose.Image) error {
	if img == nil {
		return ErrNilImage
	}
	if img.Width() != t.key.Width || img.Height() != t.key.Height {
		return fmt.Errorf("%w: image %dx%d, texture %s",
			ErrTextureSizeMismatch, img.Width(), img.Height(), t.key)
	}
	return t.device.WriteTexture(t.id, img.RawPixels())
}

// Download reads the texture contents back into an image.
// Returns ErrReadbackNotSupported on devices without readback.
func (t *Texture) Download() (*compose.Image, error) {
	data, err := t.device.ReadTexture(t.id)
	if err != nil {
		return nil, err
	}
	img := compose.FromPixels(t.key.Width, t.key.Height, data)
	if img == nil {
		return nil, fmt.Errorf("%w: device returned %d bytes for %s",
			ErrInvalidTextureSize, len(data), t.key)
	}
	return img, nil
}
