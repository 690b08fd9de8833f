package go2relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/go2relay/internal/adapters/jpeg"
	"github.com/bft-labs/go2relay/internal/adapters/ws"
	"github.com/bft-labs/go2relay/internal/app"
	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/internal/httpapi"
	"github.com/bft-labs/go2relay/pkg/log"
)

// Snapshot is the relay status reported by GET /status.
type Snapshot = domain.Status

// BatteryState is the last battery reading.
type BatteryState = domain.BatteryState

// CommandResult is the outcome of a command or motion mode change.
type CommandResult = domain.CommandResult

// Relay is a robot gateway that can be embedded in other applications.
// Use New() to create an instance, then Start() to connect.
type Relay struct {
	config    Config
	lifecycle *app.Lifecycle
	logger    log.Logger

	dispatcher *app.Dispatcher
	table      *app.CommandTable
	keepalive  *app.Keepalive
	hub        *app.TelemetryHub
	frames     *app.FramePipeline
	supervisor *app.Supervisor
	controller *app.Controller
	status     *app.StatusBoard

	plugins []Plugin

	mu       sync.Mutex
	cancel   context.CancelFunc
	server   *httpapi.Server
	listener net.Listener
}

// New creates a new Relay with the given configuration.
// The instance is created in StateStopped; call Start() to connect.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Relay, error) {
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if o.encoder == nil {
		o.encoder = jpeg.NewEncoder(cfg.JPEGQuality)
	}
	if o.dialer == nil {
		o.dialer = ws.NewDialer(logger)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	battery := &app.BatteryStore{}
	activity := &app.RemoteActivity{}
	dispatcher := app.NewDispatcher(cfg.ResultTTL)
	table := app.NewCommandTable(cfg.Tolerances)
	keepalive := app.NewKeepalive(dispatcher, activity, cfg.KeepaliveInterval, cfg.ActivityWindow, logger)
	hub := app.NewTelemetryHub(battery, activity, keepalive, cfg.inputLayout(), logger)
	frames := app.NewFramePipeline(o.encoder, logger)

	supCfg := app.DefaultSupervisorConfig(cfg.RobotAddr)
	supCfg.RequestTimeout = cfg.RequestTimeout
	supervisor := app.NewSupervisor(supCfg, o.dialer, dispatcher, table, hub, frames, battery, logger, emitter)

	controller := app.NewController(table, dispatcher, keepalive, cfg.CommandTimeout, cfg.MotionModeTimeout, logger)
	status := app.NewStatusBoard(battery, supervisor, frames, keepalive)

	r := &Relay{
		config:     cfg,
		lifecycle:  app.NewLifecycle(logger, emitter),
		logger:     logger,
		dispatcher: dispatcher,
		table:      table,
		keepalive:  keepalive,
		hub:        hub,
		frames:     frames,
		supervisor: supervisor,
		controller: controller,
		status:     status,
		plugins:    o.plugins,
	}
	return r, nil
}

// Start connects to the robot and serves the HTTP API in the background.
// Returns an error if already running or if a plugin fails to initialize.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}

	if err := r.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	var ln net.Listener
	if r.config.ListenAddr != "" {
		var err error
		ln, err = net.Listen("tcp", r.config.ListenAddr)
		if err != nil {
			_ = r.lifecycle.TransitionTo(app.StateCrashed, "listen failed")
			return fmt.Errorf("listen %s: %w", r.config.ListenAddr, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		RobotAddr: r.config.RobotAddr,
		Logger:    r.logger,
		Status:    r,
		Tuner:     r,
	}
	for _, p := range r.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			r.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			if ln != nil {
				_ = ln.Close()
			}
			_ = r.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		r.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	r.lifecycle.Go(func() {
		r.frames.Run(runCtx)
	})

	r.lifecycle.Go(func() {
		err := r.supervisor.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("supervisor error", log.Err(err))
			_ = r.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})

	r.server, r.listener = nil, nil
	if ln != nil {
		// Each run gets its own server; a shut down server cannot serve again.
		server := httpapi.NewServer(r.controller, r.status, r.frames, r.logger)
		r.server, r.listener = server, ln
		r.lifecycle.Go(func() {
			if err := server.Serve(ln); err != nil && runCtx.Err() == nil {
				r.logger.Error("http api stopped", log.Err(err))
			}
		})
	}

	return r.lifecycle.TransitionTo(app.StateRunning, "relay starting")
}

// Stop disconnects from the robot and shuts down the HTTP API.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (r *Relay) Stop() error {
	r.mu.Lock()

	if !r.lifecycle.CanStop() {
		r.mu.Unlock()
		return domain.ErrNotRunning
	}

	if err := r.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}

	if r.cancel != nil {
		r.cancel()
	}
	server, ln := r.server, r.listener
	r.server, r.listener = nil, nil

	r.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("http api shutdown failed", log.Err(err))
		}
		// Unblocks Serve if Shutdown ran before it started.
		_ = ln.Close()
	}
	if err := r.keepalive.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("keepalive shutdown failed", log.Err(err))
	}

	err := r.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	for i := len(r.plugins) - 1; i >= 0; i-- {
		p := r.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			r.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(shutdownErr))
		} else {
			r.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}

	if err != nil {
		_ = r.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = r.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}

	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (r *Relay) Status() State {
	return convertState(r.lifecycle.State())
}

// Addr returns the address the HTTP API is bound to while running, or an
// empty string.
func (r *Relay) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// ExecuteCommand sends a named command and waits for the robot's result.
// Unknown names return ErrUnknownCommand; no reply within the command
// timeout returns ErrRequestTimeout.
func (r *Relay) ExecuteCommand(ctx context.Context, name string) (CommandResult, error) {
	return r.controller.ExecuteCommand(ctx, name)
}

// SetMotionMode switches the robot's motion mode and waits for the result.
func (r *Relay) SetMotionMode(ctx context.Context, mode string) (CommandResult, error) {
	return r.controller.SetMotionMode(ctx, mode)
}

// Commands returns the available command names.
func (r *Relay) Commands() []string {
	specs := r.controller.Commands()
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return names
}

// KeepaliveActive reports whether the motion keepalive is running.
func (r *Relay) KeepaliveActive() bool {
	return r.keepalive.Active()
}

// Battery returns the last battery reading.
func (r *Relay) Battery() BatteryState {
	return r.status.Battery()
}

// Snapshot returns the current relay status.
func (r *Relay) Snapshot() Snapshot {
	return r.status.Snapshot()
}

// LatestFrame returns the latest encoded video frame and its sequence.
// The sequence is zero until the first frame is encoded.
func (r *Relay) LatestFrame() ([]byte, uint64) {
	return r.frames.LatestEncoded()
}

// SetTolerances replaces the extra success codes per command.
func (r *Relay) SetTolerances(tolerances map[string][]int) {
	r.table.SetTolerances(tolerances)
	r.logger.Info("tolerances updated", log.Int("commands", len(tolerances)))
}

// SetDeadzone changes the stick deadzone used for human input detection.
func (r *Relay) SetDeadzone(deadzone float64) {
	r.hub.SetDeadzone(deadzone)
	r.logger.Info("deadzone updated", log.Float64("deadzone", deadzone))
}

// SetKeepaliveInterval changes the keepalive ping interval.
// It takes effect on the next wait.
func (r *Relay) SetKeepaliveInterval(interval time.Duration) {
	r.keepalive.SetInterval(interval)
	r.logger.Info("keepalive interval updated", log.Duration("interval", r.keepalive.Interval()))
}
