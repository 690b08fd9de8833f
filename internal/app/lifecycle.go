package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/pkg/log"
)

// ShutdownTimeout is the maximum time to wait for graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// State represents the lifecycle state of the relay.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// validTransitions lists the allowed targets for each state.
// Invalid transitions out of Stopped/Crashed report ErrNotRunning,
// all others ErrAlreadyRunning.
var validTransitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle manages the relay's start/stop state machine and its workers.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewLifecycle creates a new lifecycle manager in StateStopped.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateStopped,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if !allowed(oldState, newState) {
		l.mu.Unlock()
		if oldState == StateStopped || oldState == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}

	l.state = newState
	l.mu.Unlock()

	// Emit outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func allowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

// SetCancel stores the cancel function for graceful shutdown.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel triggers graceful shutdown.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn as a tracked worker.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// WaitWithTimeout waits for all workers to finish.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
