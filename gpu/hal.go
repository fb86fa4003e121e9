package gpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	types "github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// HAL adapter errors.
var (
	// ErrNilHALDevice is returned when constructing an adapter without a device.
	ErrNilHALDevice = errors.New("gpu: HAL device is nil")

	// ErrNoHALProvider is returned when a host provider does not expose
	// HAL device handles.
	ErrNoHALProvider = errors.New("gpu: provider does not expose HAL device handles")
)

// DeviceProvider is the host-application integration point: frameworks
// like gogpu implement it and hand the shared GPU device to the engine.
// The engine receives the device from the host, it does not create one.
type DeviceProvider = gpucontext.DeviceProvider

// halTexture pairs a HAL texture handle with the metadata needed for
// correctly shaped writes.
type halTexture struct {
	texture hal.Texture
	width   int
	height  int
	format  TextureFormat
}

// HALDevice implements Device on top of gogpu/wgpu's hardware abstraction
// layer. It maps opaque TextureIDs to hal.Texture handles.
//
// HALDevice is safe for concurrent use; all resource operations are
// protected by a mutex.
type HALDevice struct {
	mu       sync.RWMutex
	device   hal.Device
	queue    hal.Queue
	limits   types.Limits
	textures map[TextureID]*halTexture
	nextID   atomic.Uint64
	closed   bool
}

// NewHALDevice wraps a HAL device and queue. If limits is nil the wgpu
// defaults are used.
func NewHALDevice(device hal.Device, queue hal.Queue, limits *types.Limits) (*HALDevice, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	var lim types.Limits
	if limits != nil {
		lim = *limits
	} else {
		lim = types.DefaultLimits()
	}
	d := &HALDevice{
		device:   device,
		queue:    queue,
		limits:   lim,
		textures: make(map[TextureID]*halTexture),
	}
	// Start ID generation at 1 (0 is invalid).
	d.nextID.Store(1)
	return d, nil
}

// FromProvider builds a HALDevice from a host device provider.
//
// The provider must expose HalDevice() and HalQueue() methods returning
// wgpu/hal handles; gogpu windows and contexts do. This is the same
// device-sharing contract the gogpu ecosystem uses between libraries.
func FromProvider(provider any) (*HALDevice, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice() returned %T", ErrNoHALProvider, hp.HalDevice())
	}
	queue, _ := hp.HalQueue().(hal.Queue)
	return NewHALDevice(device, queue, nil)
}

// Name returns "wgpu-hal".
func (d *HALDevice) Name() string { return "wgpu-hal" }

// HAL returns the wrapped hal.Device for callers that build pipelines
// directly, like the compute backend.
func (d *HALDevice) HAL() hal.Device { return d.device }

// HALQueue returns the wrapped hal.Queue. May be nil.
func (d *HALDevice) HALQueue() hal.Queue { return d.queue }

// Texture returns the hal.Texture behind an ID, for binding in compute
// passes.
func (d *HALDevice) Texture(id TextureID) (hal.Texture, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.textures[id]
	if !ok {
		return nil, false
	}
	return entry.texture, true
}

// MaxTextureDim returns the device's 2D texture dimension limit.
func (d *HALDevice) MaxTextureDim() int {
	return int(d.limits.MaxTextureDimension2D)
}

// CreateTexture allocates a GPU texture usable as copy target, sampled
// texture and storage binding.
func (d *HALDevice) CreateTexture(width, height int, format TextureFormat, label string) (TextureID, error) {
	if width <= 0 || height <= 0 {
		return InvalidID, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, width, height)
	}
	if width > d.MaxTextureDim() || height > d.MaxTextureDim() {
		return InvalidID, fmt.Errorf("%w: %dx%d (limit %d)",
			ErrTextureTooLarge, width, height, d.MaxTextureDim())
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return InvalidID, ErrDeviceClosed
	}
	d.mu.Unlock()

	desc := &hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			//nolint:gosec // G115: dimensions validated against device limit above
			Width: uint32(width),
			//nolint:gosec // G115: dimensions validated against device limit above
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     types.TextureDimension2D,
		Format:        halFormat(format),
		Usage: types.TextureUsageCopySrc | types.TextureUsageCopyDst |
			types.TextureUsageTextureBinding | types.TextureUsageStorageBinding,
	}

	texture, err := d.device.CreateTexture(desc)
	if err != nil {
		return InvalidID, fmt.Errorf("gpu: create texture: %w", err)
	}

	id := TextureID(d.nextID.Add(1) - 1)
	d.mu.Lock()
	d.textures[id] = &halTexture{texture: texture, width: width, height: height, format: format}
	d.mu.Unlock()
	return id, nil
}

// DestroyTexture releases a GPU texture. Unknown handles are ignored.
func (d *HALDevice) DestroyTexture(id TextureID) {
	d.mu.Lock()
	entry, ok := d.textures[id]
	if ok {
		delete(d.textures, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyTexture(entry.texture)
	}
}

// WriteTexture uploads tightly packed pixel data through the queue.
func (d *HALDevice) WriteTexture(id TextureID, data []byte) error {
	d.mu.RLock()
	entry, ok := d.textures[id]
	queue := d.queue
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrTextureNotFound, id)
	}
	expect := entry.width * entry.height * entry.format.BytesPerPixel()
	if len(data) != expect {
		return fmt.Errorf("%w: got %d bytes, texture holds %d",
			ErrInvalidTextureSize, len(data), expect)
	}
	if queue == nil {
		return fmt.Errorf("gpu: no queue for texture upload")
	}

	dst := &hal.ImageCopyTexture{
		Texture:  entry.texture,
		MipLevel: 0,
		Origin:   hal.Origin3D{X: 0, Y: 0, Z: 0},
		Aspect:   types.TextureAspectAll,
	}
	layout := &hal.ImageDataLayout{
		Offset: 0,
		//nolint:gosec // G115: dimensions bounded by device limits
		BytesPerRow: uint32(entry.width * entry.format.BytesPerPixel()),
		//nolint:gosec // G115: dimensions bounded by device limits
		RowsPerImage: uint32(entry.height),
	}
	size := &hal.Extent3D{
		//nolint:gosec // G115: dimensions bounded by device limits
		Width: uint32(entry.width),
		//nolint:gosec // G115: dimensions bounded by device limits
		Height:             uint32(entry.height),
		DepthOrArrayLayers: 1,
	}

	queue.WriteTexture(dst, data, layout, size)
	return nil
}

// ReadTexture is not implemented for the HAL device: readback requires a
// staging buffer round-trip that belongs to the compute backend. The
// evaluator keeps CPU-backed representations alongside GPU textures, so
// core paths never depend on HAL readback.
func (d *HALDevice) ReadTexture(id TextureID) ([]byte, error) {
	d.mu.RLock()
	_, ok := d.textures[id]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTextureNotFound, id)
	}
	return nil, ErrReadbackNotSupported
}

// Close destroys all tracked textures. Idempotent.
func (d *HALDevice) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	entries := make([]*halTexture, 0, len(d.textures))
	for _, e := range d.textures {
		entries = append(entries, e)
	}
	d.textures = make(map[TextureID]*halTexture)
	d.mu.Unlock()

	for _, e := range entries {
		d.device.DestroyTexture(e.texture)
	}
}

// halFormat converts a pool format to the wgpu type.
func halFormat(f TextureFormat) types.TextureFormat {
	switch f {
	case FormatRGBA8:
		return types.TextureFormatRGBA8Unorm
	case FormatBGRA8:
		return types.TextureFormatBGRA8Unorm
	case FormatR8:
		return types.TextureFormatR8Unorm
	default:
		return types.TextureFormatRGBA8Unorm
	}
}
