package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Compressor applies the page compression policy: an image whose pixel count
// exceeds Multiplier times the screen's is downscaled to fit a canvas of
// screen size times CanvasScale and re-encoded as JPEG. Smaller images are
// kept byte for byte.
type Compressor struct {
	ScreenWidth  int
	ScreenHeight int
	Multiplier   float64
	CanvasScale  float64
	Quality      int
}

// Threshold returns the pixel count above which an image is compressed.
func (c *Compressor) Threshold() float64 {
	return c.Multiplier * float64(c.ScreenWidth) * float64(c.ScreenHeight)
}

// NeedsCompression reports whether an image of w by h pixels is over the threshold.
func (c *Compressor) NeedsCompression(w, h int) bool {
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 || c.Multiplier <= 0 {
		return false
	}
	return float64(w)*float64(h) > c.Threshold()
}

// Process returns the bytes to cache for data and whether they were
// recompressed. Data in a format that cannot be decoded is kept as is.
func (c *Compressor) Process(data []byte) ([]byte, bool, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return data, false, nil
		}
		return nil, false, fmt.Errorf("read image header: %w", err)
	}
	if !c.NeedsCompression(cfg.Width, cfg.Height) {
		return data, false, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}

	maxW := int(float64(c.ScreenWidth) * max(c.CanvasScale, 1))
	maxH := int(float64(c.ScreenHeight) * max(c.CanvasScale, 1))
	w, h := fitWithin(cfg.Width, cfg.Height, maxW, maxH)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	quality := c.Quality
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, false, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), true, nil
}

// fitWithin scales w by h down to fit maxW by maxH, keeping the aspect ratio.
// Dimensions already inside the box are returned unchanged.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
}
