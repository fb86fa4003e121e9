package compose

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
)

// Image is an immutable rectangular pixel buffer in RGBA format,
// 4 bytes per pixel. Once constructed the pixel data never changes,
// which makes an Image safe to share between evaluation goroutines
// and to use as a cache input without copying.
//
// The content hash is computed lazily on first use and reused for the
// lifetime of the value.
type Image struct {
	width  int
	height int
	data   []uint8

	hashOnce sync.Once
	hash     uint64
}

// NewImage creates a fully transparent image with the given dimensions.
func NewImage(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// FromPixels creates an image from raw RGBA pixel data.
// The data is copied; the caller keeps ownership of pix.
// Returns nil if pix does not hold width*height*4 bytes.
func FromPixels(width, height int, pix []uint8) *Image {
	if len(pix) != width*height*4 {
		return nil
	}
	data := make([]uint8, len(pix))
	copy(data, pix)
	return &Image{width: width, height: height, data: data}
}

// FromImage converts a standard library image into an Image.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == width*4 {
		return FromPixels(width, height, rgba.Pix)
	}

	img := &Image{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			img.data[i+0] = uint8(r >> 8)
			img.data[i+1] = uint8(g >> 8)
			img.data[i+2] = uint8(b >> 8)
			img.data[i+3] = uint8(a >> 8)
			i += 4
		}
	}
	return img
}

// Width returns the image width in pixels.
func (m *Image) Width() int { return m.width }

// Height returns the image height in pixels.
func (m *Image) Height() int { return m.height }

// SizeBytes returns the size of the pixel data in bytes.
func (m *Image) SizeBytes() int { return len(m.data) }

// Pixels returns a copy of the raw RGBA pixel data.
func (m *Image) Pixels() []uint8 {
	out := make([]uint8, len(m.data))
	copy(out, m.data)
	return out
}

// RawPixels returns the underlying pixel data without copying.
// The returned slice must not be modified.
func (m *Image) RawPixels() []uint8 { return m.data }

// PixelAt returns the RGBA bytes of a single pixel.
// Out-of-bounds coordinates return transparent black.
func (m *Image) PixelAt(x, y int) (r, g, b, a uint8) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return 0, 0, 0, 0
	}
	i := (y*m.width + x) * 4
	return m.data[i], m.data[i+1], m.data[i+2], m.data[i+3]
}

// Hash returns the FNV-1a content hash of the pixel data.
// Two images with identical dimensions and pixels share a hash.
func (m *Image) Hash() uint64 {
	m.hashOnce.Do(func() {
		h := fnv.New64a()
		var dims [8]byte
		dims[0] = byte(m.width)
		dims[1] = byte(m.width >> 8)
		dims[2] = byte(m.width >> 16)
		dims[3] = byte(m.width >> 24)
		dims[4] = byte(m.height)
		dims[5] = byte(m.height >> 8)
		dims[6] = byte(m.height >> 16)
		dims[7] = byte(m.height >> 24)
		_, _ = h.Write(dims[:])
		_, _ = h.Write(m.data) // fnv.Write never returns an error
		m.hash = h.Sum64()
	})
	return m.hash
}

// CacheKey returns a stable string key derived from the image content,
// usable as a map key in result caches.
func (m *Image) CacheKey() string {
	return fmt.Sprintf("img:%dx%d:%016x", m.width, m.height, m.Hash())
}

// ToImage converts the image to a standard library *image.RGBA.
// The pixel data is copied.
func (m *Image) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	copy(img.Pix, m.data)
	return img
}

// SavePNG writes the image to a PNG file.
func (m *Image) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return png.Encode(f, m.ToImage())
}

// At implements the image.Image interface.
func (m *Image) At(x, y int) color.Color {
	r, g, b, a := m.PixelAt(x, y)
	return color.RGBA{R: r, G: g, B: b, A: a}
}

// Bounds implements the image.Image interface.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// ColorModel implements the image.Image interface.
func (m *Image) ColorModel() color.Model {
	return color.RGBAModel
}
