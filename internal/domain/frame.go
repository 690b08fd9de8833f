package domain

import "image"

// RawFrame is a decoded video frame as delivered by the session.
type RawFrame struct {
	Image image.Image
	Seq   uint64
}

// EncodedFrame is a compressed frame ready for streaming.
// Seq increases by exactly one per successful compression.
type EncodedFrame struct {
	Data []byte
	Seq  uint64
}

// FrameStats counts frames moving through the pipeline.
type FrameStats struct {
	Received       uint64 `json:"received"`
	Dropped        uint64 `json:"dropped"`
	Encoded        uint64 `json:"encoded"`
	EncodeFailures uint64 `json:"encode_failures"`
}
