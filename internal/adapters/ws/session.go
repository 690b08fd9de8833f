package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/internal/ports"
	"github.com/bft-labs/go2relay/pkg/log"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
)

// Dialer implements ports.Dialer over a WebSocket to the robot bridge.
type Dialer struct {
	dialer *websocket.Dialer
	logger log.Logger
}

// NewDialer creates a new bridge dialer.
func NewDialer(logger log.Logger) *Dialer {
	return &Dialer{
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger: log.With(logger, log.String("component", "ws")),
	}
}

// Dial connects to addr. A bare host:port is dialed as ws://host:port/.
func (d *Dialer) Dial(ctx context.Context, addr string) (ports.Session, error) {
	url := addr
	if !strings.Contains(url, "://") {
		url = "ws://" + url + "/"
	}

	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newSession(conn, d.logger), nil
}

// Session implements ports.Session over a single WebSocket connection.
// One reader goroutine dispatches replies, pushed messages and frames;
// writes are serialised.
type Session struct {
	conn   *websocket.Conn
	logger log.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]chan replyData
	handlers map[string]ports.MessageHandler
	onFrame  ports.FrameHandler
	err      error

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, logger log.Logger) *Session {
	s := &Session{
		conn:     conn,
		logger:   logger,
		pending:  make(map[string]chan replyData),
		handlers: make(map[string]ports.MessageHandler),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Session) readLoop() {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.shutdown(fmt.Errorf("%w: %v", domain.ErrSessionClosed, err))
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			s.handleFrame(data)
		case websocket.TextMessage:
			s.handleEnvelope(data)
		}
	}
}

func (s *Session) handleFrame(data []byte) {
	s.mu.Lock()
	handler := s.onFrame
	s.mu.Unlock()
	if handler == nil {
		return
	}

	img, err := decodeFrame(data)
	if err != nil {
		s.logger.Debug("dropping video frame", log.Err(err))
		return
	}
	handler(img)
}

func (s *Session) handleEnvelope(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Debug("dropping malformed envelope", log.Err(err))
		return
	}

	switch env.Type {
	case typeResponse:
		var reply replyData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &reply); err != nil {
				s.logger.Debug("malformed reply", log.String("id", env.ID), log.Err(err))
				return
			}
		}
		s.mu.Lock()
		ch, ok := s.pending[env.ID]
		delete(s.pending, env.ID)
		s.mu.Unlock()
		if ok {
			ch <- reply
		}

	case typeMessage:
		s.mu.Lock()
		handler := s.handlers[env.Topic]
		s.mu.Unlock()
		if handler != nil {
			handler(ports.Message{Topic: env.Topic, Data: env.Data})
		}
	}
}

// Request sends a request and waits for the correlated reply.
func (s *Session) Request(ctx context.Context, topic string, payload interface{}) (ports.Reply, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ports.Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	id := uuid.NewString()
	ch := make(chan replyData, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(envelope{Type: typeRequest, ID: id, Topic: topic, Data: data}); err != nil {
		return ports.Reply{}, err
	}

	select {
	case reply := <-ch:
		return ports.Reply{Code: reply.Code, Message: reply.Message, Data: reply.Data}, nil
	case <-s.done:
		return ports.Reply{}, s.Err()
	case <-ctx.Done():
		return ports.Reply{}, fmt.Errorf("request %s: %w", topic, ctx.Err())
	}
}

// Publish sends a one-way message on topic.
func (s *Session) Publish(ctx context.Context, topic string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.write(envelope{Type: typeMessage, Topic: topic, Data: data})
}

// Subscribe registers handler and asks the bridge to forward topic.
func (s *Session) Subscribe(topic string, handler ports.MessageHandler) error {
	s.mu.Lock()
	s.handlers[topic] = handler
	s.mu.Unlock()
	return s.write(envelope{Type: typeSubscribe, Topic: topic})
}

// SetVideo toggles the video channel.
func (s *Session) SetVideo(enabled bool) error {
	data, _ := json.Marshal(enabled)
	return s.write(envelope{Type: typeVideo, Data: data})
}

// OnVideoFrame registers the frame callback.
func (s *Session) OnVideoFrame(handler ports.FrameHandler) {
	s.mu.Lock()
	s.onFrame = handler
	s.mu.Unlock()
}

// Done is closed when the connection ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session ended. Nil while it is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close sends a close frame and releases the connection.
func (s *Session) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}

	s.writeMu.Lock()
	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()

	s.shutdown(domain.ErrSessionClosed)
	return err
}

func (s *Session) write(env envelope) error {
	select {
	case <-s.done:
		return s.Err()
	default:
	}

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := s.conn.WriteJSON(env)
	s.writeMu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: write: %v", domain.ErrSessionClosed, err)
		s.shutdown(err)
		return err
	}
	return nil
}

func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
	})
}
