package app

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/internal/ports"
	"github.com/bft-labs/go2relay/pkg/log"
)

// BatteryStore holds the latest BatteryState. Last writer wins.
type BatteryStore struct {
	mu    sync.RWMutex
	state domain.BatteryState
}

// Snapshot returns a copy of the current state.
func (b *BatteryStore) Snapshot() domain.BatteryState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetConnected records whether a robot session is up.
func (b *BatteryStore) SetConnected(connected bool) {
	b.mu.Lock()
	b.state.Connected = connected
	b.mu.Unlock()
}

// update replaces the non-nil readings.
func (b *BatteryStore) update(soc, voltage, current *float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if soc != nil {
		b.state.SOC = soc
	}
	if voltage != nil {
		b.state.Voltage = voltage
	}
	if current != nil {
		b.state.Current = current
	}
}

// keepaliveStopper is the slice of the watchdog the hub needs.
type keepaliveStopper interface {
	RequestStop(reason string) bool
}

// lowState is the subset of the low-state message the relay decodes.
type lowState struct {
	BMS *struct {
		SOC     *float64 `json:"soc"`
		Current *float64 `json:"current"`
	} `json:"bms_state"`
	PowerV         *float64 `json:"power_v"`
	WirelessRemote []int    `json:"wireless_remote"`
}

// TelemetryHub consumes low-state pushes: battery readings and
// human-input detection.
type TelemetryHub struct {
	battery  *BatteryStore
	activity *RemoteActivity
	stopper  keepaliveStopper
	logger   log.Logger
	now      func() time.Time

	layoutMu sync.RWMutex
	layout   InputLayout

	received  atomic.Uint64
	malformed atomic.Uint64
}

// NewTelemetryHub creates a hub writing into battery and activity.
func NewTelemetryHub(battery *BatteryStore, activity *RemoteActivity, stopper keepaliveStopper, layout InputLayout, logger log.Logger) *TelemetryHub {
	return &TelemetryHub{
		battery:  battery,
		activity: activity,
		stopper:  stopper,
		layout:   layout,
		logger:   log.With(logger, log.String("component", "telemetry")),
		now:      time.Now,
	}
}

// OnStatus handles one low-state push. It runs on the session's receive
// goroutine and never blocks on anything but short-held locks.
func (h *TelemetryHub) OnStatus(msg ports.Message) {
	h.received.Add(1)

	var st lowState
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		if h.malformed.Add(1) == 1 {
			h.logger.Debug("malformed low state", log.Err(err))
		}
		return
	}

	var soc, current *float64
	if st.BMS != nil {
		soc, current = st.BMS.SOC, st.BMS.Current
	}
	h.battery.update(soc, st.PowerV, current)

	block, ok := remoteBytes(st.WirelessRemote)
	if !ok {
		return
	}
	if !h.Layout().DetectActivity(block) {
		return
	}

	h.activity.Mark(h.now())
	if h.stopper != nil && h.stopper.RequestStop("human input detected") {
		h.logger.Info("human input detected, yielding motion keepalive")
	}
}

// Layout returns the active input layout.
func (h *TelemetryHub) Layout() InputLayout {
	h.layoutMu.RLock()
	defer h.layoutMu.RUnlock()
	return h.layout
}

// SetDeadzone updates the stick deadzone.
func (h *TelemetryHub) SetDeadzone(deadzone float64) {
	h.layoutMu.Lock()
	h.layout.Deadzone = deadzone
	h.layoutMu.Unlock()
}

// Received returns how many low-state pushes have arrived.
func (h *TelemetryHub) Received() uint64 {
	return h.received.Load()
}

// remoteBytes converts the JSON number array to bytes. Values outside a
// byte's range mark the block as malformed.
func remoteBytes(values []int) ([]byte, bool) {
	if len(values) == 0 {
		return nil, false
	}
	b := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xff {
			return nil, false
		}
		b[i] = byte(v)
	}
	return b, true
}
