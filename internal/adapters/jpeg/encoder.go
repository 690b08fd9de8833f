package jpeg

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality is the JPEG quality used for the video feed.
const DefaultQuality = 85

// Encoder implements ports.FrameEncoder with image/jpeg.
type Encoder struct {
	quality int
}

// NewEncoder creates an encoder. Quality is clamped to 1..100.
func NewEncoder(quality int) *Encoder {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return &Encoder{quality: quality}
}

// Encode compresses img.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type of encoded frames.
func (e *Encoder) ContentType() string {
	return "image/jpeg"
}

// Quality returns the configured quality.
func (e *Encoder) Quality() int {
	return e.quality
}
