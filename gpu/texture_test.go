package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/compose"
)

func TestTextureUploadDownload(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	tex, err := pool.Acquire(2, 2, FormatRGBA8, PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(tex)

	pix := make([]uint8, 16)
	pix[0] = 200
	pix[15] = 100
	img := compose.FromPixels(2, 2, pix)

	if err := tex.Upload(img); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	back, err := tex.Download()
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if r, _, _, _ := back.PixelAt(0, 0); r != 200 {
		t.Errorf("pixel (0,0).r = %d, want 200", r)
	}
	if _, _, _, a := back.PixelAt(1, 1); a != 100 {
		t.Errorf("pixel (1,1).a = %d, want 100", a)
	}
}

func TestTextureUploadSizeMismatch(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{})

	tex, err := pool.Acquire(4, 4, FormatRGBA8, PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(tex)

	img := compose.NewImage(2, 2)
	if err := tex.Upload(img); !errors.Is(err, ErrTextureSizeMismatch) {
		t.Errorf("err = %v, want ErrTextureSizeMismatch", err)
	}
	if err := tex.Upload(nil); !errors.Is(err, ErrNilImage) {
		t.Errorf("err = %v, want ErrNilImage", err)
	}
}

func TestTextureKeySizeBytes(t *testing.T) {
	k := TextureKey{Width: 64, Height: 32, Format: FormatRGBA8}
	if k.SizeBytes() != 64*32*4 {
		t.Errorf("SizeBytes = %d, want %d", k.SizeBytes(), 64*32*4)
	}
	if k.String() != "64x32/RGBA8" {
		t.Errorf("String = %q", k.String())
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !(PriorityLow < PriorityNormal && PriorityNormal < PriorityHigh && PriorityHigh < PriorityDisplay) {
		t.Error("priorities must order low < normal < high < display")
	}
}
