package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/internal/ports"
)

func countPings(sess *fakeSession) int {
	n := 0
	for _, call := range sess.Published() {
		if call.Topic == ports.TopicMotionSwitcher {
			n++
		}
	}
	return n
}

func assertPingsSettled(t *testing.T, sess *fakeSession) {
	t.Helper()
	// Let a ping queued just before the stop drain.
	time.Sleep(20 * time.Millisecond)
	before := countPings(sess)
	time.Sleep(80 * time.Millisecond)
	if after := countPings(sess); after != before {
		t.Errorf("pings continued after stop: %d -> %d", before, after)
	}
}

func TestController_UnknownCommand(t *testing.T) {
	r := newRig(newFakeDialer(nil))

	_, err := r.controller.ExecuteCommand(context.Background(), "backflip")
	if !errors.Is(err, domain.ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
	if cmds, _ := r.dispatcher.Pending(); cmds != 0 {
		t.Error("unknown command must not be queued")
	}
}

func TestController_TimeoutWithoutSession(t *testing.T) {
	r := newRig(newFakeDialer(func(int) bool { return true }))
	r.controller.commandTimeout = 30 * time.Millisecond

	start := time.Now()
	_, err := r.controller.ExecuteCommand(context.Background(), "hello")
	if !errors.Is(err, domain.ErrRequestTimeout) {
		t.Fatalf("err = %v, want ErrRequestTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timed out after %v, want about 30ms", elapsed)
	}
}

// Engage, settle, then a human grabs the remote.
func TestController_KeepaliveYieldsToHuman(t *testing.T) {
	r := newRig(newFakeDialer(nil))
	r.start(t)
	sess := r.session(t)

	res, err := r.controller.ExecuteCommand(context.Background(), "stand_up")
	if err != nil || !res.Success {
		t.Fatalf("stand_up: res=%+v err=%v", res, err)
	}
	if !r.controller.KeepaliveActive() {
		t.Fatal("keepalive should start after a successful stand_up")
	}

	waitFor(t, 2*time.Second, func() bool { return countPings(sess) >= 3 })

	remote := toInts(remoteBlock([2]byte{0x01, 0}, [4]float32{}))
	sess.Handler(ports.TopicLowState)(lowStateMessage(t, map[string]interface{}{
		"wireless_remote": remote,
	}))

	waitFor(t, time.Second, func() bool { return !r.controller.KeepaliveActive() })
	assertPingsSettled(t, sess)
}

func TestController_DisengageStopsKeepalive(t *testing.T) {
	r := newRig(newFakeDialer(nil))
	r.start(t)
	sess := r.session(t)

	if _, err := r.controller.ExecuteCommand(context.Background(), "balance_stand"); err != nil {
		t.Fatalf("balance_stand: %v", err)
	}
	if !r.controller.KeepaliveActive() {
		t.Fatal("keepalive should be active")
	}

	// A second eligible command does not start another loop.
	if _, err := r.controller.ExecuteCommand(context.Background(), "recovery_stand"); err != nil {
		t.Fatalf("recovery_stand: %v", err)
	}

	if _, err := r.controller.ExecuteCommand(context.Background(), "damp"); err != nil {
		t.Fatalf("damp: %v", err)
	}
	waitFor(t, time.Second, func() bool { return !r.controller.KeepaliveActive() })
	assertPingsSettled(t, sess)
}

func TestController_RejectedCommandDoesNotEngage(t *testing.T) {
	dialer := newFakeDialer(nil)
	dialer.reply = func(topic string, payload interface{}) (ports.Reply, error) {
		if topic == ports.TopicSportRequest {
			return ports.Reply{Code: 7, Message: "lying down"}, nil
		}
		return ports.Reply{}, nil
	}
	r := newRig(dialer)
	r.start(t)
	sess := r.session(t)

	res, err := r.controller.ExecuteCommand(context.Background(), "stand_up")
	if err != nil {
		t.Fatalf("stand_up: %v", err)
	}
	if res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if r.controller.KeepaliveActive() {
		t.Error("keepalive must not start after a rejected command")
	}
	if got := countPings(sess); got != 0 {
		t.Errorf("%d pings, want 0", got)
	}
}
