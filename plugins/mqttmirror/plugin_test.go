package mqttmirror

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/pkg/go2relay"
	"github.com/bft-labs/go2relay/pkg/log"
)

type fakeStatus struct{}

func (fakeStatus) Snapshot() go2relay.Snapshot {
	soc := 64.0
	return go2relay.Snapshot{
		Connected:       true,
		BatterySOC:      &soc,
		SessionState:    "connected",
		KeepaliveActive: true,
		FrameSeq:        9,
	}
}

func (fakeStatus) Battery() go2relay.BatteryState {
	soc, volts := 64.0, 28.5
	return go2relay.BatteryState{SOC: &soc, Voltage: &volts, Connected: true}
}

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []message
	err    error
	closed bool
}

func (f *fakePublisher) Publish(topic string, qos byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, message{topic, qos, payload})
	return nil
}

func (f *fakePublisher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakePublisher) messages() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message(nil), f.msgs...)
}

func newTestPlugin(cfg Config, pub *fakePublisher) *Plugin {
	p := New(cfg)
	p.newPublisher = func(Config, log.Logger) publisher { return pub }
	return p
}

func TestBuildPayload(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b, err := buildPayload(fakeStatus{}.Snapshot(), fakeStatus{}.Battery(), now)
	if err != nil {
		t.Fatalf("buildPayload() error = %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	checks := map[string]interface{}{
		"connected":        true,
		"battery_soc":      64.0,
		"session_state":    "connected",
		"keepalive_active": true,
		"frame_seq":        9.0,
		"timestamp":        "2024-05-01T12:00:00Z",
	}
	for key, want := range checks {
		if got[key] != want {
			t.Errorf("%s = %v, want %v", key, got[key], want)
		}
	}
	battery, ok := got["battery"].(map[string]interface{})
	if !ok {
		t.Fatalf("battery = %v, want object", got["battery"])
	}
	if battery["voltage"] != 28.5 {
		t.Errorf("battery.voltage = %v, want 28.5", battery["voltage"])
	}
}

func TestPlugin_PublishesAtInterval(t *testing.T) {
	pub := &fakePublisher{}
	p := newTestPlugin(Config{Broker: "tcp://broker:1883", Interval: 10 * time.Millisecond, QoS: 1}, pub)

	if err := p.Initialize(context.Background(), go2relay.PluginConfig{Status: fakeStatus{}}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.messages()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("published %d messages, want 3", len(pub.messages()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !pub.closed {
		t.Error("publisher not closed on shutdown")
	}

	msg := pub.messages()[0]
	if msg.topic != defaultTopic {
		t.Errorf("topic = %q, want %q", msg.topic, defaultTopic)
	}
	if msg.qos != 1 {
		t.Errorf("qos = %d, want 1", msg.qos)
	}
	var status domain.Status
	if err := json.Unmarshal(msg.payload, &status); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if !status.Connected {
		t.Error("payload connected = false")
	}

	published, failures := p.Stats()
	if published < 3 || failures != 0 {
		t.Errorf("Stats() = %d, %d", published, failures)
	}
}

func TestPlugin_CountsFailures(t *testing.T) {
	pub := &fakePublisher{err: errNotConnected}
	p := newTestPlugin(Config{Broker: "tcp://broker:1883", Interval: time.Hour}, pub)

	if err := p.Initialize(context.Background(), go2relay.PluginConfig{Status: fakeStatus{}}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, failures := p.Stats(); failures == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("publish failure not counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = p.Shutdown(context.Background())

	if !errors.Is(pub.err, errNotConnected) {
		t.Fatal("unexpected publisher error")
	}
}

func TestPlugin_DisabledWithoutBroker(t *testing.T) {
	pub := &fakePublisher{}
	p := newTestPlugin(Config{}, pub)

	if err := p.Initialize(context.Background(), go2relay.PluginConfig{Status: fakeStatus{}}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(pub.messages()) != 0 || pub.closed {
		t.Error("disabled plugin used the publisher")
	}
	if p.cfg.Topic != defaultTopic || p.cfg.ClientID != defaultClientID || p.cfg.Interval != defaultInterval {
		t.Errorf("defaults not applied: %+v", p.cfg)
	}
}
