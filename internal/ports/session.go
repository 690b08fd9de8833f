package ports

import (
	"context"
	"encoding/json"
	"image"
)

// Topics on the robot's data channel.
const (
	TopicLowState       = "rt/lf/lowstate"
	TopicSportRequest   = "rt/api/sport/request"
	TopicMotionSwitcher = "rt/api/motion_switcher/request"
)

// Message is a push notification delivered on a subscribed topic.
type Message struct {
	Topic string
	Data  json.RawMessage
}

// Reply is the robot's answer to a request.
type Reply struct {
	// Code is the header status code; 0 means success.
	Code int

	// Message is the robot's status text, if any.
	Message string

	// Data is the raw reply payload.
	Data json.RawMessage
}

// MessageHandler consumes pushed messages. It runs on the session's
// receive goroutine and must not block.
type MessageHandler func(Message)

// FrameHandler consumes decoded video frames. Same constraints as MessageHandler.
type FrameHandler func(image.Image)

// Session is one live connection to the robot. A Session is never reused
// after Done is closed; the supervisor dials a new one.
type Session interface {
	// Request sends a request and waits for its reply, bounded by ctx.
	Request(ctx context.Context, topic string, payload interface{}) (Reply, error)

	// Publish sends a one-way message. No reply is tracked.
	Publish(ctx context.Context, topic string, payload interface{}) error

	// Subscribe registers handler for pushed messages on topic.
	Subscribe(topic string, handler MessageHandler) error

	// SetVideo enables or disables the video channel.
	SetVideo(enabled bool) error

	// OnVideoFrame registers the frame callback.
	OnVideoFrame(handler FrameHandler)

	// Done is closed when the session is lost or closed.
	Done() <-chan struct{}

	// Err reports why Done was closed.
	Err() error

	// Close tears the session down.
	Close() error
}

// Dialer establishes robot sessions.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Session, error)
}
