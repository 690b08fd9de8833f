package go2relay

import (
	"github.com/bft-labs/go2relay/internal/app"
	"github.com/bft-labs/go2relay/internal/domain"
)

// State is the lifecycle state of a Relay.
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

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// SessionChangeEvent reports a robot session transition.
type SessionChangeEvent struct {
	Previous string
	Current  string
}

// EventHandler receives relay events. Methods are called synchronously from
// relay goroutines and should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnSessionChange(event SessionChangeEvent)
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnSessionStateChange(previous, current domain.SessionState) {
	if e.handler == nil {
		return
	}
	e.handler.OnSessionChange(SessionChangeEvent{
		Previous: previous.String(),
		Current:  current.String(),
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
