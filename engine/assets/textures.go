package assets

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/fennelvane/ember/engine/core"
)

// Bitmap holds decoded pixels as tightly packed 8-bit RGBA rows, the
// layout buffer-to-image copies expect.
type Bitmap struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// ByteSize returns the upload size of the pixel data.
func (b *Bitmap) ByteSize() uint64 {
	return uint64(len(b.Pixels))
}

// LoadBitmap decodes a PNG or JPEG file into a Bitmap.
func LoadBitmap(path string) (*Bitmap, error) {
	f, err := os.Open(path)
	if err != nil {
		core.LogError("failed to open texture %s: %s", path, err)
		return nil, fmt.Errorf("failed to open texture %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		core.LogError("failed to decode texture %s: %s", path, err)
		return nil, fmt.Errorf("failed to decode texture %s: %w", path, err)
	}
	return BitmapFromImage(img), nil
}

// BitmapFromImage converts any decoded image into tightly packed RGBA.
func BitmapFromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return &Bitmap{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}
}
