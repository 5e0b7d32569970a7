package assets

import (
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWords(t *testing.T, words []uint32) string {
	t.Helper()
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	path := filepath.Join(t.TempDir(), "blob.spv")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestLoadSPIRVRoundTrip(t *testing.T) {
	want := []uint32{spirvMagic, 0x00010000, 42, 7}
	got, err := LoadSPIRV(writeWords(t, want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadSPIRVRejectsMisaligned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.spv")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))
	_, err := LoadSPIRV(path)
	assert.Error(t, err)
}

func TestLoadSPIRVRejectsWrongMagic(t *testing.T) {
	_, err := LoadSPIRV(writeWords(t, []uint32{0xdeadbeef, 1}))
	assert.Error(t, err)
}

func TestBitmapFromImagePacksRGBA(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 0, B: 255, A: 128})

	bm := BitmapFromImage(img)
	assert.Equal(t, uint32(2), bm.Width)
	assert.Equal(t, uint32(1), bm.Height)
	require.Len(t, bm.Pixels, 8)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 128}, bm.Pixels)
	assert.Equal(t, uint64(8), bm.ByteSize())
}
