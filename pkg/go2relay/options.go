package go2relay

import (
	"github.com/bft-labs/go2relay/internal/ports"
	"github.com/bft-labs/go2relay/pkg/log"
)

// Dialer establishes robot sessions. The default dials the WebSocket bridge.
type Dialer = ports.Dialer

// FrameEncoder compresses video frames. The default encodes JPEG.
type FrameEncoder = ports.FrameEncoder

// Option configures optional behavior of a Relay.
type Option func(*options)

// options holds the optional configuration for a Relay instance.
type options struct {
	logger       log.Logger
	dialer       Dialer
	encoder      FrameEncoder
	eventHandler EventHandler
	plugins      []Plugin
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialer replaces the session transport.
func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithEncoder replaces the frame encoder.
func WithEncoder(encoder FrameEncoder) Option {
	return func(o *options) {
		o.encoder = encoder
	}
}

// WithEventHandler sets a handler for relay events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the Relay starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
