package app

import "github.com/bft-labs/go2relay/internal/domain"

// StatusBoard assembles a point-in-time status from the owning components.
// Each read takes one component lock at a time.
type StatusBoard struct {
	battery    *BatteryStore
	supervisor *Supervisor
	frames     *FramePipeline
	keepalive  *Keepalive
}

// NewStatusBoard creates a status board.
func NewStatusBoard(battery *BatteryStore, supervisor *Supervisor, frames *FramePipeline, keepalive *Keepalive) *StatusBoard {
	return &StatusBoard{
		battery:    battery,
		supervisor: supervisor,
		frames:     frames,
		keepalive:  keepalive,
	}
}

// Battery returns the battery state.
func (b *StatusBoard) Battery() domain.BatteryState {
	return b.battery.Snapshot()
}

// Snapshot returns the gateway status.
func (b *StatusBoard) Snapshot() domain.Status {
	battery := b.battery.Snapshot()
	stats := b.frames.Stats()
	return domain.Status{
		Connected:       battery.Connected,
		BatterySOC:      battery.SOC,
		HasVideo:        b.frames.HasVideo(),
		SessionState:    b.supervisor.State().String(),
		KeepaliveActive: b.keepalive.Active(),
		FrameSeq:        stats.Encoded,
		Frames:          stats,
	}
}
