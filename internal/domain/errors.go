package domain

import "errors"

// Domain errors returned by the public API; check them with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running relay.
	ErrAlreadyRunning = errors.New("go2relay: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped relay.
	ErrNotRunning = errors.New("go2relay: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("go2relay: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("go2relay: invalid configuration")

	// ErrRequestTimeout is returned when no result arrives within the caller's budget.
	ErrRequestTimeout = errors.New("go2relay: request timed out")

	// ErrUnknownResult is returned when awaiting a result id that was never
	// issued or has already been claimed, expired, or invalidated.
	ErrUnknownResult = errors.New("go2relay: unknown result id")

	// ErrUnknownCommand is returned for command names missing from the command table.
	ErrUnknownCommand = errors.New("go2relay: unknown command")

	// ErrUnknownMode is returned for motion modes the robot does not support.
	ErrUnknownMode = errors.New("go2relay: unknown motion mode")

	// ErrSessionClosed is returned by a session that has been lost or closed.
	ErrSessionClosed = errors.New("go2relay: session closed")
)
