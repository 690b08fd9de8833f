// Package mqttmirror publishes go2relay status snapshots to an MQTT broker.
package mqttmirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/go2relay/pkg/go2relay"
	"github.com/bft-labs/go2relay/pkg/log"
)

const (
	defaultTopic    = "go2relay/status"
	defaultClientID = "go2relay"
	defaultInterval = 5 * time.Second
	publishTimeout  = 2 * time.Second
)

var errNotConnected = errors.New("mqtt not connected")

// Config holds configuration options for the MQTT mirror plugin.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	// An empty broker disables the plugin.
	Broker string

	// Topic receives the status messages.
	// Default: go2relay/status
	Topic string

	// ClientID identifies the relay to the broker.
	// Default: go2relay
	ClientID string

	// Interval between status messages.
	// Default: 5 seconds
	Interval time.Duration

	// QoS of published messages.
	QoS byte

	Username string
	Password string
}

// publisher is the part of an MQTT client the mirror needs.
type publisher interface {
	Publish(topic string, qos byte, payload []byte) error
	Close()
}

// Plugin periodically publishes the relay snapshot as JSON.
type Plugin struct {
	cfg    Config
	logger log.Logger
	status go2relay.StatusSource

	newPublisher func(cfg Config, logger log.Logger) publisher
	pub          publisher

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	published uint64
	failures  uint64
}

// New creates a new MQTT mirror plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.Topic == "" {
		cfg.Topic = defaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = defaultClientID
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Plugin{
		cfg:          cfg,
		newPublisher: newPahoPublisher,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "mqttmirror"
}

// Initialize connects to the broker in the background and starts publishing.
func (p *Plugin) Initialize(ctx context.Context, cfg go2relay.PluginConfig) error {
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.status = cfg.Status

	if p.cfg.Broker == "" || p.status == nil {
		p.logger.Info("mqtt mirror disabled: no broker configured")
		return nil
	}

	p.pub = p.newPublisher(p.cfg, p.logger)

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.publishLoop(runCtx)

	p.logger.Info("mqtt mirror started",
		log.String("broker", p.cfg.Broker),
		log.String("topic", p.cfg.Topic),
		log.Duration("interval", p.cfg.Interval))
	return nil
}

// Shutdown stops publishing and disconnects from the broker.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if p.pub != nil {
		p.pub.Close()
	}
	return nil
}

// Stats returns the number of published and failed messages.
func (p *Plugin) Stats() (published, failures uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failures
}

func (p *Plugin) publishLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.publishOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce()
		}
	}
}

func (p *Plugin) publishOnce() {
	payload, err := buildPayload(p.status.Snapshot(), p.status.Battery(), time.Now())
	if err == nil {
		err = p.pub.Publish(p.cfg.Topic, p.cfg.QoS, payload)
	}

	p.mu.Lock()
	if err != nil {
		p.failures++
	} else {
		p.published++
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Debug("mqtt publish failed", log.String("topic", p.cfg.Topic), log.Err(err))
	}
}

// statusMessage is the JSON document published on each tick.
type statusMessage struct {
	go2relay.Snapshot
	Battery   go2relay.BatteryState `json:"battery"`
	Timestamp string                `json:"timestamp"`
}

func buildPayload(snap go2relay.Snapshot, battery go2relay.BatteryState, now time.Time) ([]byte, error) {
	msg := statusMessage{
		Snapshot:  snap,
		Battery:   battery,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return b, nil
}

// pahoPublisher publishes through an auto-reconnecting paho client.
type pahoPublisher struct {
	client mqtt.Client
}

func newPahoPublisher(cfg Config, logger log.Logger) publisher {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connected", log.String("broker", cfg.Broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect",
			log.String("broker", cfg.Broker),
			log.Err(err))
	}

	client := mqtt.NewClient(opts)
	// With connect retry enabled the token completes only once connected.
	client.Connect()
	return &pahoPublisher{client: client}
}

func (p *pahoPublisher) Publish(topic string, qos byte, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return errNotConnected
	}
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout after %s", publishTimeout)
	}
	return token.Error()
}

func (p *pahoPublisher) Close() {
	p.client.Disconnect(250)
}

var _ go2relay.Plugin = (*Plugin)(nil)
