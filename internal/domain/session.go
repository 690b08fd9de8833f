package domain

// SessionState is the supervisor's view of the robot session.
type SessionState int

const (
	SessionDisconnected SessionState = iota
	SessionConnecting
	SessionConnected
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "Disconnected"
	case SessionConnecting:
		return "Connecting"
	case SessionConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}
