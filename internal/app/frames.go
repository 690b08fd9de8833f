package app

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/internal/ports"
	"github.com/bft-labs/go2relay/pkg/log"
)

// frameQueueCapacity bounds frames waiting for the encoder. Frames arriving
// while it is full are dropped and counted.
const frameQueueCapacity = 2

// FramePipeline decouples frame arrival from compression. The session
// callback only stores and enqueues; a dedicated worker encodes.
type FramePipeline struct {
	encoder ports.FrameEncoder
	logger  log.Logger
	queue   chan image.Image

	rawMu  sync.Mutex
	raw    image.Image
	rawSeq uint64

	encMu   sync.RWMutex
	encoded []byte
	seq     uint64

	received       atomic.Uint64
	dropped        atomic.Uint64
	encodeFailures atomic.Uint64
}

// NewFramePipeline creates a pipeline. Call Run to start the encoder worker.
func NewFramePipeline(encoder ports.FrameEncoder, logger log.Logger) *FramePipeline {
	return &FramePipeline{
		encoder: encoder,
		logger:  log.With(logger, log.String("component", "frames")),
		queue:   make(chan image.Image, frameQueueCapacity),
	}
}

// OnFrame accepts a decoded frame from the session. Never blocks.
func (p *FramePipeline) OnFrame(img image.Image) {
	if img == nil {
		return
	}
	p.received.Add(1)

	p.rawMu.Lock()
	p.raw = img
	p.rawSeq++
	p.rawMu.Unlock()

	select {
	case p.queue <- img:
	default:
		p.dropped.Add(1)
	}
}

// Run encodes queued frames until ctx is done.
func (p *FramePipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case img := <-p.queue:
			p.encode(img)
		}
	}
}

func (p *FramePipeline) encode(img image.Image) {
	data, err := p.encoder.Encode(img)
	if err != nil {
		if n := p.encodeFailures.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("frame encode failed", log.Err(err), log.Uint64("failures", n))
		}
		return
	}

	p.encMu.Lock()
	p.encoded = data
	p.seq++
	p.encMu.Unlock()
}

// LatestEncoded returns a copy of the newest encoded frame and its
// sequence. Sequence 0 means nothing has been encoded yet.
func (p *FramePipeline) LatestEncoded() ([]byte, uint64) {
	p.encMu.RLock()
	defer p.encMu.RUnlock()
	if p.encoded == nil {
		return nil, p.seq
	}
	out := make([]byte, len(p.encoded))
	copy(out, p.encoded)
	return out, p.seq
}

// LatestSeq returns the sequence of the newest encoded frame.
func (p *FramePipeline) LatestSeq() uint64 {
	p.encMu.RLock()
	defer p.encMu.RUnlock()
	return p.seq
}

// LatestRaw returns a copy of the newest decoded frame, for consumers such
// as a detector.
func (p *FramePipeline) LatestRaw() (domain.RawFrame, bool) {
	p.rawMu.Lock()
	img, seq := p.raw, p.rawSeq
	p.rawMu.Unlock()

	if img == nil {
		return domain.RawFrame{}, false
	}
	return domain.RawFrame{Image: cloneImage(img), Seq: seq}, true
}

// HasVideo reports whether any frame has arrived.
func (p *FramePipeline) HasVideo() bool {
	p.rawMu.Lock()
	defer p.rawMu.Unlock()
	return p.raw != nil
}

// ContentType is the MIME type of encoded frames.
func (p *FramePipeline) ContentType() string {
	return p.encoder.ContentType()
}

// Stats returns frame counters.
func (p *FramePipeline) Stats() domain.FrameStats {
	p.encMu.RLock()
	encoded := p.seq
	p.encMu.RUnlock()
	return domain.FrameStats{
		Received:       p.received.Load(),
		Dropped:        p.dropped.Load(),
		Encoded:        encoded,
		EncodeFailures: p.encodeFailures.Load(),
	}
}

// Cursor returns a consumer-side reader that tracks its own position.
func (p *FramePipeline) Cursor() *FrameCursor {
	return &FrameCursor{pipeline: p}
}

// FrameCursor delivers each encoded frame at most once to one consumer.
// Not safe for concurrent use; give each consumer its own cursor.
type FrameCursor struct {
	pipeline *FramePipeline
	last     uint64
}

// Next returns the newest frame if its sequence advanced past the last one
// delivered through this cursor.
func (c *FrameCursor) Next() ([]byte, uint64, bool) {
	if c.pipeline.LatestSeq() <= c.last {
		return nil, c.last, false
	}
	data, seq := c.pipeline.LatestEncoded()
	if data == nil || seq <= c.last {
		return nil, c.last, false
	}
	c.last = seq
	return data, seq, true
}

func cloneImage(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}
