package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testCompressor() *Compressor {
	// Screen of 100x200 = 20,000 px; threshold 40,000 px; canvas 150x300.
	return &Compressor{ScreenWidth: 100, ScreenHeight: 200, Multiplier: 2, CanvasScale: 1.5, Quality: 80}
}

func TestCompressor_KeepsSmallImages(t *testing.T) {
	data := encodePNG(t, 150, 200) // 30,000 px

	out, compressed, err := testCompressor().Process(data)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, data, out)
}

func TestCompressor_DownscalesLargeImages(t *testing.T) {
	data := encodePNG(t, 600, 800) // 480,000 px

	out, compressed, err := testCompressor().Process(data)
	require.NoError(t, err)
	require.True(t, compressed)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, cfg.Width, 150)
	assert.LessOrEqual(t, cfg.Height, 300)
	// 600x800 keeps its 3:4 ratio inside a 150x300 box.
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestCompressor_OverThresholdButInsideCanvas(t *testing.T) {
	c := &Compressor{ScreenWidth: 100, ScreenHeight: 100, Multiplier: 1, CanvasScale: 3, Quality: 90}
	data := encodePNG(t, 200, 200) // over 10,000 px, inside 300x300 canvas

	out, compressed, err := c.Process(data)
	require.NoError(t, err)
	require.True(t, compressed)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width, "re-encoded at original size")
}

func TestCompressor_UnknownFormatKeptAsIs(t *testing.T) {
	data := []byte("definitely not an image")

	out, compressed, err := testCompressor().Process(data)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, data, out)
}

func TestCompressor_DisabledWithoutScreen(t *testing.T) {
	c := &Compressor{Multiplier: 2}
	assert.False(t, c.NeedsCompression(10_000, 10_000))
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{100, 100, 200, 200, 100, 100},
		{400, 200, 200, 200, 200, 100},
		{200, 400, 200, 200, 100, 200},
		{1000, 1, 10, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(encodePNG(t, 300, 400))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	small, err := ComputeBlurHash(encodePNG(t, 16, 16))
	require.NoError(t, err)
	assert.NotEmpty(t, small)

	_, err = ComputeBlurHash([]byte("nope"))
	assert.Error(t, err)
}
