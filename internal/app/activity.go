package app

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// InputLayout locates the human-input fields inside the remote-control
// block of a low-state message. The offsets are a best-effort decode of an
// undocumented format, so they are configuration rather than constants.
type InputLayout struct {
	// MinLength is the smallest block that holds every field below.
	MinLength int

	// ButtonOffsets are bytes that are non-zero while a key is held.
	ButtonOffsets []int

	// AxisOffsets are little-endian float32 joystick axes.
	AxisOffsets []int

	// Deadzone is the axis magnitude at or below which a stick is idle.
	Deadzone float64
}

// DefaultInputLayout matches the 40-byte wireless_remote block: key bits at
// bytes 2-3, then lx, rx, ry and (after L2) ly.
func DefaultInputLayout() InputLayout {
	return InputLayout{
		MinLength:     24,
		ButtonOffsets: []int{2, 3},
		AxisOffsets:   []int{4, 8, 12, 20},
		Deadzone:      0.05,
	}
}

// DetectActivity reports whether the block shows a pressed button or a
// deflected stick. Undersized or malformed blocks report false.
func (l InputLayout) DetectActivity(b []byte) bool {
	if len(b) < l.MinLength {
		return false
	}
	for _, off := range l.ButtonOffsets {
		if off < 0 || off >= len(b) {
			return false
		}
		if b[off] != 0 {
			return true
		}
	}
	for _, off := range l.AxisOffsets {
		if off < 0 || off+4 > len(b) {
			return false
		}
		v := math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
		// Compared at wire precision so an axis exactly at the deadzone is
		// idle. NaN fails the comparison and counts as idle.
		if float32(math.Abs(float64(v))) > float32(l.Deadzone) {
			return true
		}
	}
	return false
}

// RemoteActivity records when human input was last observed.
type RemoteActivity struct {
	mu           sync.Mutex
	lastActiveAt time.Time
}

// Mark records activity at t.
func (a *RemoteActivity) Mark(t time.Time) {
	a.mu.Lock()
	a.lastActiveAt = t
	a.mu.Unlock()
}

// LastActiveAt returns the last activity time; zero means never observed.
func (a *RemoteActivity) LastActiveAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActiveAt
}

// RecentlyActive reports whether activity was observed within window of now.
// An unset timestamp is never active.
func (a *RemoteActivity) RecentlyActive(now time.Time, window time.Duration) bool {
	last := a.LastActiveAt()
	if last.IsZero() {
		return false
	}
	return now.Sub(last) <= window
}
