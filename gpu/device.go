// Package gpu provides the GPU resource layer of the compositing engine:
// a device abstraction with opaque texture handles, a priority-aware
// texture pool, and the dual CPU/GPU buffer representation.
package gpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Device errors.
var (
	// ErrDeviceClosed is returned when operating on a closed device.
	ErrDeviceClosed = errors.New("gpu: device closed")

	// ErrInvalidTextureSize is returned when texture dimensions are invalid.
	ErrInvalidTextureSize = errors.New("gpu: invalid texture size")

	// ErrTextureTooLarge is returned when a requested texture exceeds the
	// device limit. Callers should treat this as recoverable: degrade
	// quality or split the work, do not crash.
	ErrTextureTooLarge = errors.New("gpu: texture exceeds device limit")

	// ErrTextureNotFound is returned when a texture handle is unknown.
	ErrTextureNotFound = errors.New("gpu: texture not found")

	// ErrReadbackNotSupported is returned by devices that cannot copy
	// texture contents back to the CPU.
	ErrReadbackNotSupported = errors.New("gpu: texture readback not supported")
)

// TextureID is an opaque handle to a device texture. Each device
// implementation maintains its own mapping between IDs and backend
// resources.
type TextureID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID TextureID = 0

// Device abstracts texture allocation for the pool. Implementations must
// be safe for concurrent use.
//
// Two implementations ship with the engine: SoftwareDevice (CPU byte
// slices, used by tests and low-tier hosts) and HALDevice (gogpu/wgpu).
type Device interface {
	// Name returns the device identifier (e.g. "software", "wgpu-hal").
	Name() string

	// CreateTexture allocates a texture and returns its handle.
	CreateTexture(width, height int, format TextureFormat, label string) (TextureID, error)

	// DestroyTexture releases a texture. Unknown handles are ignored.
	DestroyTexture(id TextureID)

	// WriteTexture uploads tightly packed pixel data to a texture.
	WriteTexture(id TextureID, data []byte) error

	// ReadTexture downloads texture contents as tightly packed pixel data.
	// Devices without readback return ErrReadbackNotSupported.
	ReadTexture(id TextureID) ([]byte, error)

	// MaxTextureDim returns the maximum width/height the device supports.
	MaxTextureDim() int

	// Close releases all device resources.
	Close()
}

// softwareTexture is a CPU-side stand-in for a device texture.
type softwareTexture struct {
	width  int
	height int
	format TextureFormat
	data   []byte
}

// SoftwareDevice implements Device with plain byte slices. It backs the
// CPU strategy tier and the test suite; semantics (handles, size limits,
// readback) match the GPU devices so pool code cannot tell them apart.
type SoftwareDevice struct {
	mu       sync.Mutex
	textures map[TextureID]*softwareTexture
	nextID   atomic.Uint64
	maxDim   int
	closed   bool
}

// DefaultMaxTextureDim mirrors the common wgpu default limit.
const DefaultMaxTextureDim = 8192

// NewSoftwareDevice creates a software device with the default size limit.
func NewSoftwareDevice() *SoftwareDevice {
	d := &SoftwareDevice{
		textures: make(map[TextureID]*softwareTexture),
		maxDim:   DefaultMaxTextureDim,
	}
	// Start ID generation at 1 (0 is invalid).
	d.nextID.Store(1)
	return d
}

// Name returns "software".
func (d *SoftwareDevice) Name() string { return "software" }

// SetMaxTextureDim overrides the size limit. Useful in tests that
// exercise allocation-failure paths.
func (d *SoftwareDevice) SetMaxTextureDim(dim int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxDim = dim
}

// MaxTextureDim returns the maximum supported texture dimension.
func (d *SoftwareDevice) MaxTextureDim() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxDim
}

// CreateTexture allocates a zero-filled texture.
func (d *SoftwareDevice) CreateTexture(width, height int, format TextureFormat, label string) (TextureID, error) {
	if width <= 0 || height <= 0 {
		return InvalidID, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, width, height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return InvalidID, ErrDeviceClosed
	}
	if width > d.maxDim || height > d.maxDim {
		return InvalidID, fmt.Errorf("%w: %dx%d (limit %d)", ErrTextureTooLarge, width, height, d.maxDim)
	}

	id := TextureID(d.nextID.Add(1) - 1)
	d.textures[id] = &softwareTexture{
		width:  width,
		height: height,
		format: format,
		data:   make([]byte, width*height*format.BytesPerPixel()),
	}
	_ = label
	return id, nil
}

// DestroyTexture releases a texture. Unknown handles are ignored.
func (d *SoftwareDevice) DestroyTexture(id TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

// WriteTexture copies pixel data into the texture.
func (d *SoftwareDevice) WriteTexture(id TextureID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTextureNotFound, id)
	}
	if len(data) != len(tex.data) {
		return fmt.Errorf("%w: got %d bytes, texture holds %d",
			ErrInvalidTextureSize, len(data), len(tex.data))
	}
	copy(tex.data, data)
	return nil
}

// ReadTexture returns a copy of the texture contents.
func (d *SoftwareDevice) ReadTexture(id TextureID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	tex, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTextureNotFound, id)
	}
	out := make([]byte, len(tex.data))
	copy(out, tex.data)
	return out, nil
}

// Close releases all textures. Idempotent.
func (d *SoftwareDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.textures = make(map[TextureID]*softwareTexture)
	d.closed = true
}
