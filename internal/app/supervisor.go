package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/internal/ports"
	"github.com/bft-labs/go2relay/pkg/log"
)

// Supervisor defaults.
const (
	DefaultTickInterval   = time.Second / 30
	DefaultRestartDelay   = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultExpireInterval = time.Second
)

// SupervisorConfig contains configuration for the supervisor loop.
type SupervisorConfig struct {
	Address        string
	TickInterval   time.Duration
	RestartDelay   time.Duration
	RequestTimeout time.Duration
	BackoffStep    time.Duration
	BackoffMax     time.Duration
	ExpireInterval time.Duration
}

// DefaultSupervisorConfig returns the default timings for addr.
func DefaultSupervisorConfig(addr string) SupervisorConfig {
	return SupervisorConfig{
		Address:        addr,
		TickInterval:   DefaultTickInterval,
		RestartDelay:   DefaultRestartDelay,
		RequestTimeout: DefaultRequestTimeout,
		BackoffStep:    DefaultBackoffStep,
		BackoffMax:     DefaultBackoffMax,
		ExpireInterval: DefaultExpireInterval,
	}
}

func (c *SupervisorConfig) applyDefaults() {
	d := DefaultSupervisorConfig(c.Address)
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = d.RestartDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = d.BackoffStep
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.ExpireInterval <= 0 {
		c.ExpireInterval = d.ExpireInterval
	}
}

// SessionObserver is called when the session state changes.
type SessionObserver interface {
	OnSessionStateChange(previous, current domain.SessionState)
}

// sportRequest is the payload for sport and motion switcher requests.
type sportRequest struct {
	APIID     int    `json:"api_id"`
	Parameter string `json:"parameter,omitempty"`
}

func setModeRequest(mode string) sportRequest {
	param, _ := json.Marshal(map[string]string{"name": mode})
	return sportRequest{APIID: APISetMotionMode, Parameter: string(param)}
}

// Supervisor owns the robot session. It reconnects forever, wires
// telemetry and video into each new session, and forwards queued requests
// from the dispatcher at a fixed tick rate.
type Supervisor struct {
	config     SupervisorConfig
	dialer     ports.Dialer
	dispatcher *Dispatcher
	table      *CommandTable
	hub        *TelemetryHub
	frames     *FramePipeline
	battery    *BatteryStore
	logger     log.Logger
	observer   SessionObserver

	state atomic.Int32
	sleep sleepFunc
	now   func() time.Time
}

// NewSupervisor creates a supervisor with the given dependencies.
func NewSupervisor(
	config SupervisorConfig,
	dialer ports.Dialer,
	dispatcher *Dispatcher,
	table *CommandTable,
	hub *TelemetryHub,
	frames *FramePipeline,
	battery *BatteryStore,
	logger log.Logger,
	observer SessionObserver,
) *Supervisor {
	config.applyDefaults()
	return &Supervisor{
		config:     config,
		dialer:     dialer,
		dispatcher: dispatcher,
		table:      table,
		hub:        hub,
		frames:     frames,
		battery:    battery,
		logger:     log.With(logger, log.String("component", "supervisor")),
		observer:   observer,
		sleep:      sleepCtx,
		now:        time.Now,
	}
}

// State returns the current session state.
func (s *Supervisor) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

func (s *Supervisor) setState(next domain.SessionState) {
	prev := domain.SessionState(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	s.logger.Debug("session state changed",
		log.String("from", prev.String()),
		log.String("to", next.String()),
	)
	if s.observer != nil {
		s.observer.OnSessionStateChange(prev, next)
	}
}

// Run executes the supervisor loop. It returns only when ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		sess, err := s.connectWithRetry(ctx)
		if err != nil {
			return ctx.Err()
		}

		s.battery.SetConnected(true)
		s.setState(domain.SessionConnected)

		err = s.runSession(ctx, sess)

		s.battery.SetConnected(false)
		s.setState(domain.SessionDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("session ended, restarting",
			log.Err(err),
			log.Duration("delay", s.config.RestartDelay),
		)
		if err := s.sleep(ctx, s.config.RestartDelay); err != nil {
			return ctx.Err()
		}
	}
}

// connectWithRetry dials until a session is established. The attempt counter
// starts fresh on every call.
func (s *Supervisor) connectWithRetry(ctx context.Context) (ports.Session, error) {
	b := newBackoff(s.config.BackoffStep, s.config.BackoffMax)

	for {
		s.setState(domain.SessionConnecting)

		sess, err := s.dialer.Dial(ctx, s.config.Address)
		if err == nil {
			s.logger.Info("connected to robot",
				log.String("addr", s.config.Address),
				log.Int("attempt", b.Attempt()),
			)
			return sess, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.setState(domain.SessionDisconnected)
		s.logger.Warn("connect failed",
			log.Err(err),
			log.Int("attempt", b.Attempt()),
			log.Duration("retry_in", b.Current()),
		)
		if err := b.Wait(ctx, s.sleep); err != nil {
			return nil, err
		}
	}
}

// runSession wires one session and runs the tick loop until the session is
// lost or ctx ends.
func (s *Supervisor) runSession(ctx context.Context, sess ports.Session) error {
	defer func() {
		if err := sess.SetVideo(false); err != nil {
			s.logger.Debug("disable video", log.Err(err))
		}
		if err := sess.Close(); err != nil {
			s.logger.Debug("close session", log.Err(err))
		}
	}()

	s.setNormalMode(ctx, sess)

	sess.OnVideoFrame(s.frames.OnFrame)
	if err := sess.SetVideo(true); err != nil {
		if errors.Is(err, domain.ErrSessionClosed) {
			return fmt.Errorf("enable video: %w", err)
		}
		s.logger.Warn("enable video failed", log.Err(err))
	}

	if err := sess.Subscribe(ports.TopicLowState, s.hub.OnStatus); err != nil {
		return fmt.Errorf("subscribe %s: %w", ports.TopicLowState, err)
	}

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()
	lastExpire := s.now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.Done():
			if err := sess.Err(); err != nil {
				return err
			}
			return domain.ErrSessionClosed
		case <-ticker.C:
		}

		if err := s.tick(ctx, sess); err != nil {
			return err
		}

		if now := s.now(); now.Sub(lastExpire) >= s.config.ExpireInterval {
			if n := s.dispatcher.Expire(now); n > 0 {
				s.logger.Debug("evicted unclaimed results", log.Int("count", n))
			}
			lastExpire = now
		}
	}
}

func (s *Supervisor) setNormalMode(ctx context.Context, sess ports.Session) {
	rctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	reply, err := sess.Request(rctx, ports.TopicMotionSwitcher, setModeRequest(ModeNormal))
	switch {
	case err != nil:
		s.logger.Warn("set motion mode normal failed", log.Err(err))
	case reply.Code != 0:
		s.logger.Warn("set motion mode normal rejected",
			log.Int("code", reply.Code),
			log.String("message", reply.Message),
		)
	default:
		s.logger.Info("motion mode set", log.String("mode", ModeNormal))
	}
}

// tick forwards at most one motion-mode request and one command. Only
// session-level faults are returned.
func (s *Supervisor) tick(ctx context.Context, sess ports.Session) error {
	if req, ok := s.dispatcher.PopMotionMode(); ok {
		if err := s.forwardMotionMode(ctx, sess, req); err != nil {
			return err
		}
	}
	if req, ok := s.dispatcher.PopCommand(); ok {
		if err := s.forwardCommand(ctx, sess, req); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) forwardCommand(ctx context.Context, sess ports.Session, req domain.CommandRequest) error {
	rctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	reply, err := sess.Request(rctx, ports.TopicSportRequest, sportRequest{APIID: req.APIID})
	if err != nil {
		return s.fail(ctx, req.ResultID, req.CommandID, err)
	}

	success := s.table.Succeeded(req.CommandID, reply.Code)
	s.complete(req.ResultID, reply, success)
	s.logger.Info("command forwarded",
		log.String("command", req.CommandID),
		log.Int("api_id", req.APIID),
		log.Int("code", reply.Code),
		log.Bool("success", success),
	)
	return nil
}

func (s *Supervisor) forwardMotionMode(ctx context.Context, sess ports.Session, req domain.MotionModeRequest) error {
	rctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	if req.OneWay {
		err := sess.Publish(rctx, ports.TopicMotionSwitcher, setModeRequest(req.Mode))
		if err != nil {
			s.logger.Warn("motion ping failed", log.Err(err), log.String("reason", req.Reason))
			if isSessionFault(ctx, err) {
				return err
			}
		}
		return nil
	}

	reply, err := sess.Request(rctx, ports.TopicMotionSwitcher, setModeRequest(req.Mode))
	if err != nil {
		return s.fail(ctx, req.ResultID, "motion_mode:"+req.Mode, err)
	}

	s.complete(req.ResultID, reply, reply.Code == 0)
	s.logger.Info("motion mode forwarded",
		log.String("mode", req.Mode),
		log.Int("code", reply.Code),
	)
	return nil
}

func (s *Supervisor) complete(resultID string, reply ports.Reply, success bool) {
	msg := reply.Message
	if msg == "" {
		if success {
			msg = "ok"
		} else {
			msg = fmt.Sprintf("status %d", reply.Code)
		}
	}
	s.dispatcher.Complete(domain.CommandResult{
		ResultID:  resultID,
		Success:   success,
		Message:   msg,
		RawStatus: reply.Code,
	})
}

// fail completes the result as failed and returns err only if it is a
// session-level fault.
func (s *Supervisor) fail(ctx context.Context, resultID, what string, err error) error {
	s.dispatcher.Complete(domain.CommandResult{
		ResultID:  resultID,
		Success:   false,
		Message:   err.Error(),
		RawStatus: -1,
	})
	if isSessionFault(ctx, err) {
		return err
	}
	s.logger.Warn("request failed", log.String("request", what), log.Err(err))
	return nil
}

func isSessionFault(ctx context.Context, err error) bool {
	return errors.Is(err, domain.ErrSessionClosed) || ctx.Err() != nil
}
