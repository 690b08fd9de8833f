package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/go2relay/internal/ports"
)

type fakeCall struct {
	Topic   string
	Payload interface{}
}

type fakeSession struct {
	reply func(topic string, payload interface{}) (ports.Reply, error)

	mu        sync.Mutex
	requests  []fakeCall
	published []fakeCall
	subs      map[string]ports.MessageHandler
	video     []bool
	onFrame   ports.FrameHandler
	closed    bool
	err       error

	done      chan struct{}
	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		subs: make(map[string]ports.MessageHandler),
		done: make(chan struct{}),
	}
}

func (s *fakeSession) Request(ctx context.Context, topic string, payload interface{}) (ports.Reply, error) {
	s.mu.Lock()
	s.requests = append(s.requests, fakeCall{Topic: topic, Payload: payload})
	reply := s.reply
	s.mu.Unlock()

	if reply == nil {
		return ports.Reply{}, nil
	}
	return reply(topic, payload)
}

func (s *fakeSession) Publish(ctx context.Context, topic string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, fakeCall{Topic: topic, Payload: payload})
	return nil
}

func (s *fakeSession) Subscribe(topic string, handler ports.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[topic] = handler
	return nil
}

func (s *fakeSession) SetVideo(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = append(s.video, enabled)
	return nil
}

func (s *fakeSession) OnVideoFrame(handler ports.FrameHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = handler
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// kill simulates the transport dropping.
func (s *fakeSession) kill(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *fakeSession) Requests() []fakeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fakeCall(nil), s.requests...)
}

func (s *fakeSession) Published() []fakeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fakeCall(nil), s.published...)
}

func (s *fakeSession) Handler(topic string) ports.MessageHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[topic]
}

func (s *fakeSession) Video() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.video...)
}

func (s *fakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDialer struct {
	// fail reports whether dial number n (1-based) should fail.
	fail  func(n int) bool
	reply func(topic string, payload interface{}) (ports.Reply, error)

	mu       sync.Mutex
	dials    int
	sessions chan *fakeSession
}

func newFakeDialer(fail func(n int) bool) *fakeDialer {
	return &fakeDialer{fail: fail, sessions: make(chan *fakeSession, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (ports.Session, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()

	if d.fail != nil && d.fail(n) {
		return nil, errors.New("connection refused")
	}
	sess := newFakeSession()
	sess.reply = d.reply
	d.sessions <- sess
	return sess, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) next(timeout time.Duration) *fakeSession {
	select {
	case s := <-d.sessions:
		return s
	case <-time.After(timeout):
		return nil
	}
}

// sleepRecorder records requested delays and returns immediately.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
