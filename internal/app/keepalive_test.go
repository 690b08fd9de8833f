package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/go2relay/pkg/log"
)

type recordingPinger struct {
	mu      sync.Mutex
	reasons []string
}

func (p *recordingPinger) SendMotionPing(mode, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reasons = append(p.reasons, mode+":"+reason)
}

func (p *recordingPinger) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reasons)
}

func (p *recordingPinger) First() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reasons) == 0 {
		return ""
	}
	return p.reasons[0]
}

func newTestKeepalive(interval time.Duration) (*Keepalive, *recordingPinger, *RemoteActivity) {
	pinger := &recordingPinger{}
	activity := &RemoteActivity{}
	return NewKeepalive(pinger, activity, interval, time.Second, log.NewNoopLogger()), pinger, activity
}

func TestKeepalive_StartSendsImmediatePing(t *testing.T) {
	k, pinger, _ := newTestKeepalive(time.Hour)
	defer k.Shutdown(context.Background())

	if !k.StartIfNeeded("stand_up") {
		t.Fatal("StartIfNeeded on idle watchdog returned false")
	}
	if got := pinger.First(); got != "normal:stand_up" {
		t.Errorf("first ping = %q, want normal:stand_up", got)
	}
	if !k.Active() {
		t.Error("watchdog should be active")
	}
}

func TestKeepalive_Exclusive(t *testing.T) {
	k, pinger, _ := newTestKeepalive(time.Hour)
	defer k.Shutdown(context.Background())

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if k.StartIfNeeded("balance_stand") {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := started.Load(); got != 1 {
		t.Errorf("%d loops started, want 1", got)
	}
	if got := pinger.Count(); got != 1 {
		t.Errorf("%d pings sent, want 1", got)
	}
}

func TestKeepalive_RequestStop(t *testing.T) {
	k, pinger, _ := newTestKeepalive(time.Hour)

	if k.RequestStop("damp") {
		t.Error("RequestStop on idle watchdog should return false")
	}

	k.StartIfNeeded("stand_up")
	if !k.RequestStop("damp") {
		t.Fatal("RequestStop on active watchdog should return true")
	}
	if k.RequestStop("damp") {
		t.Error("second RequestStop while stopping should return false")
	}

	waitFor(t, time.Second, func() bool { return !k.Active() })

	if got := pinger.Count(); got != 1 {
		t.Errorf("%d pings after stop, want only the initial one", got)
	}

	// Idle again, so it can be re-armed.
	if !k.StartIfNeeded("recovery_stand") {
		t.Error("StartIfNeeded after stop should succeed")
	}
	k.Shutdown(context.Background())
}

func TestKeepalive_PingsUntilStopped(t *testing.T) {
	k, pinger, _ := newTestKeepalive(10 * time.Millisecond)

	k.StartIfNeeded("stand_up")
	waitFor(t, 2*time.Second, func() bool { return pinger.Count() >= 3 })

	if err := k.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if k.Active() {
		t.Fatal("watchdog still active after Shutdown")
	}

	settled := pinger.Count()
	time.Sleep(50 * time.Millisecond)
	if got := pinger.Count(); got != settled {
		t.Errorf("pings continued after stop: %d -> %d", settled, got)
	}
}

func TestKeepalive_YieldsToRemoteActivity(t *testing.T) {
	k, pinger, activity := newTestKeepalive(20 * time.Millisecond)

	k.StartIfNeeded("stand_up")
	activity.Mark(time.Now())

	waitFor(t, 2*time.Second, func() bool { return !k.Active() })

	if got := pinger.Count(); got != 1 {
		t.Errorf("%d pings, want 1 (loop should yield before the second)", got)
	}
}

func TestKeepalive_SetInterval(t *testing.T) {
	k, _, _ := newTestKeepalive(time.Second)

	k.SetInterval(0)
	if got := k.Interval(); got != time.Second {
		t.Errorf("non-positive interval should be ignored, got %v", got)
	}
	k.SetInterval(3 * time.Second)
	if got := k.Interval(); got != 3*time.Second {
		t.Errorf("Interval = %v, want 3s", got)
	}
}
