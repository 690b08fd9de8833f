package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/go2relay/pkg/log"
)

const (
	// DefaultKeepaliveInterval is the time between motion-mode pings.
	DefaultKeepaliveInterval = 20 * time.Second
	// DefaultActivityWindow is how recent remote input must be to end keepalive.
	DefaultActivityWindow = 5 * time.Second
)

// motionPinger sends one-way motion-mode messages.
type motionPinger interface {
	SendMotionPing(mode, reason string)
}

// Keepalive periodically re-asserts the normal motion mode after the robot
// has been put into a standing posture, and yields as soon as a human takes
// over with the wireless remote.
//
// At most one loop runs at a time. Stopping is cooperative: RequestStop
// signals the loop, which exits at its next wait.
type Keepalive struct {
	pinger   motionPinger
	activity *RemoteActivity
	logger   log.Logger
	now      func() time.Time

	mu       sync.Mutex
	active   bool
	stopping bool
	stop     chan struct{}
	done     chan struct{}
	interval time.Duration
	window   time.Duration
}

// NewKeepalive creates an idle watchdog.
func NewKeepalive(pinger motionPinger, activity *RemoteActivity, interval, window time.Duration, logger log.Logger) *Keepalive {
	if interval <= 0 {
		interval = DefaultKeepaliveInterval
	}
	if window <= 0 {
		window = DefaultActivityWindow
	}
	return &Keepalive{
		pinger:   pinger,
		activity: activity,
		logger:   logger,
		now:      time.Now,
		interval: interval,
		window:   window,
	}
}

// StartIfNeeded starts the loop unless one is already running. It sends the
// first ping immediately, tagged with reason. Returns false if already active.
func (k *Keepalive) StartIfNeeded(reason string) bool {
	k.mu.Lock()
	if k.active {
		k.mu.Unlock()
		return false
	}
	k.active = true
	k.stopping = false
	stop := make(chan struct{})
	done := make(chan struct{})
	k.stop = stop
	k.done = done
	k.mu.Unlock()

	k.logger.Info("keepalive started", log.String("reason", reason))
	k.pinger.SendMotionPing(ModeNormal, reason)

	go k.loop(stop, done)
	return true
}

func (k *Keepalive) loop(stop, done chan struct{}) {
	defer func() {
		k.mu.Lock()
		k.active = false
		k.stopping = false
		k.mu.Unlock()
		close(done)
	}()

	for {
		timer := time.NewTimer(k.Interval())
		select {
		case <-stop:
			timer.Stop()
			k.logger.Info("keepalive stopped")
			return
		case <-timer.C:
		}

		k.mu.Lock()
		window := k.window
		k.mu.Unlock()
		if k.activity.RecentlyActive(k.now(), window) {
			k.logger.Info("keepalive yielding to remote control",
				log.Duration("window", window))
			return
		}

		select {
		case <-stop:
			k.logger.Info("keepalive stopped")
			return
		default:
		}

		k.pinger.SendMotionPing(ModeNormal, "keepalive")
		k.logger.Debug("keepalive ping sent")
	}
}

// RequestStop signals a running loop to exit. It reports whether a signal
// was sent: false if idle or a stop is already pending.
func (k *Keepalive) RequestStop(reason string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.active || k.stopping {
		return false
	}
	k.stopping = true
	close(k.stop)
	k.logger.Info("keepalive stop requested", log.String("reason", reason))
	return true
}

// Active reports whether the loop is running.
func (k *Keepalive) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

// Interval returns the current ping interval.
func (k *Keepalive) Interval() time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.interval
}

// SetInterval changes the ping interval. A running loop picks it up at its
// next wait.
func (k *Keepalive) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	k.mu.Lock()
	k.interval = d
	k.mu.Unlock()
}

// Shutdown stops a running loop and waits for it to exit.
func (k *Keepalive) Shutdown(ctx context.Context) error {
	k.RequestStop("shutdown")

	k.mu.Lock()
	done := k.done
	k.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
