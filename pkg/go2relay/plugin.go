package go2relay

import (
	"context"
	"time"

	"github.com/bft-labs/go2relay/pkg/log"
)

// Plugin extends a Relay. Plugins are initialized in registration order on
// Start and shut down in reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// StatusSource provides relay snapshots.
type StatusSource interface {
	Snapshot() Snapshot
	Battery() BatteryState
}

// Tuner adjusts runtime settings without a restart.
type Tuner interface {
	SetTolerances(tolerances map[string][]int)
	SetDeadzone(deadzone float64)
	SetKeepaliveInterval(interval time.Duration)
}

// PluginConfig is passed to Plugin.Initialize.
type PluginConfig struct {
	RobotAddr string
	Logger    log.Logger
	Status    StatusSource
	Tuner     Tuner
}
