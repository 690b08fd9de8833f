package ports

import "image"

// FrameEncoder compresses a decoded frame into the streaming wire format.
type FrameEncoder interface {
	Encode(img image.Image) ([]byte, error)

	// ContentType is the MIME type of encoded frames.
	ContentType() string
}
