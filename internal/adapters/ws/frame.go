package ws

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
)

const (
	frameHeaderSize = 8
	maxFrameSide    = 8192
)

var errBadFrame = errors.New("malformed video frame")

// decodeFrame parses a binary video message: little-endian uint32 width and
// height followed by packed RGB pixels.
func decodeFrame(b []byte) (*image.RGBA, error) {
	if len(b) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", errBadFrame, len(b))
	}
	w := int(binary.LittleEndian.Uint32(b[0:4]))
	h := int(binary.LittleEndian.Uint32(b[4:8]))
	if w <= 0 || h <= 0 || w > maxFrameSide || h > maxFrameSide {
		return nil, fmt.Errorf("%w: %dx%d", errBadFrame, w, h)
	}

	pix := b[frameHeaderSize:]
	if len(pix) != w*h*3 {
		return nil, fmt.Errorf("%w: %d pixel bytes for %dx%d", errBadFrame, len(pix), w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
		img.Pix[j] = pix[i]
		img.Pix[j+1] = pix[i+1]
		img.Pix[j+2] = pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
