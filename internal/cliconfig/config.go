package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/go2relay/internal/domain"
)

// Defaults.
const (
	DefaultRobotAddr         = "127.0.0.1:8081"
	DefaultListenAddr        = ":5001"
	DefaultJPEGQuality       = 85
	DefaultKeepaliveInterval = 20 * time.Second
	DefaultActivityWindow    = 5 * time.Second
	DefaultDeadzone          = 0.05
	DefaultCommandTimeout    = 8 * time.Second
	DefaultMotionModeTimeout = 3 * time.Second
	DefaultRequestTimeout    = 5 * time.Second
	DefaultResultTTL         = 30 * time.Second
	DefaultMQTTTopic         = "go2relay/status"
	DefaultMQTTClientID      = "go2relay"
	DefaultMQTTInterval      = 5 * time.Second
	DefaultLogLevel          = "info"
)

// Config holds CLI configuration for go2relay.
type Config struct {
	RobotAddr  string
	ListenAddr string

	JPEGQuality int

	KeepaliveInterval time.Duration
	ActivityWindow    time.Duration
	Deadzone          float64

	// Wireless remote byte layout.
	InputMinLength int
	ButtonOffsets  []int
	AxisOffsets    []int

	CommandTimeout    time.Duration
	MotionModeTimeout time.Duration
	RequestTimeout    time.Duration
	ResultTTL         time.Duration

	// Tolerances maps a command name to extra status codes counted as success.
	Tolerances map[string][]int

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTInterval time.Duration

	WatchConfig bool
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		RobotAddr:         DefaultRobotAddr,
		ListenAddr:        DefaultListenAddr,
		JPEGQuality:       DefaultJPEGQuality,
		KeepaliveInterval: DefaultKeepaliveInterval,
		ActivityWindow:    DefaultActivityWindow,
		Deadzone:          DefaultDeadzone,
		InputMinLength:    24,
		ButtonOffsets:     []int{2, 3},
		AxisOffsets:       []int{4, 8, 12, 20},
		CommandTimeout:    DefaultCommandTimeout,
		MotionModeTimeout: DefaultMotionModeTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		ResultTTL:         DefaultResultTTL,
		Tolerances:        map[string][]int{},
		MQTTTopic:         DefaultMQTTTopic,
		MQTTClientID:      DefaultMQTTClientID,
		MQTTInterval:      DefaultMQTTInterval,
		WatchConfig:       true,
		LogLevel:          DefaultLogLevel,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.RobotAddr == "" {
		return fmt.Errorf("%w: robot-addr is required", domain.ErrInvalidConfig)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is required", domain.ErrInvalidConfig)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality %d not in 1..100", domain.ErrInvalidConfig, c.JPEGQuality)
	}
	if c.Deadzone < 0 || c.Deadzone >= 1 {
		return fmt.Errorf("%w: deadzone %v not in [0, 1)", domain.ErrInvalidConfig, c.Deadzone)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"keepalive interval", c.KeepaliveInterval},
		{"activity window", c.ActivityWindow},
		{"command timeout", c.CommandTimeout},
		{"motion mode timeout", c.MotionModeTimeout},
		{"request timeout", c.RequestTimeout},
		{"result ttl", c.ResultTTL},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidConfig, d.name)
		}
	}

	for _, off := range append(append([]int(nil), c.ButtonOffsets...), c.AxisOffsets...) {
		if off < 0 {
			return fmt.Errorf("%w: negative input offset %d", domain.ErrInvalidConfig, off)
		}
	}

	if c.MQTTBroker != "" {
		if c.MQTTTopic == "" {
			return fmt.Errorf("%w: mqtt topic is required with a broker", domain.ErrInvalidConfig)
		}
		if c.MQTTInterval <= 0 {
			return fmt.Errorf("%w: mqtt interval must be positive", domain.ErrInvalidConfig)
		}
	}
	return nil
}

// ParseTolerances parses "sit=-1;stand_down=-1,3" into a tolerance table.
func ParseTolerances(s string) (map[string][]int, error) {
	out := map[string][]int{}
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, codes, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("tolerance %q: want name=code[,code]", entry)
		}
		list, err := parseIntList(codes)
		if err != nil {
			return nil, fmt.Errorf("tolerance %q: %w", name, err)
		}
		out[name] = list
	}
	return out, nil
}

// parseIntList parses a comma-separated list of integers. Empty input is an
// empty list.
func parseIntList(s string) ([]int, error) {
	out := []int{}
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value from a pointer if not nil and flag not
// changed, so an explicit zero is kept.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setInts sets an int slice if non-empty and flag not changed.
func (s *configSetter) setInts(flag string, value []int, dst *[]int) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]int(nil), value...)
}

// setTolerances replaces the tolerance table if value is non-nil and flag
// not changed.
func (s *configSetter) setTolerances(flag string, value map[string][]int, dst *map[string][]int) {
	if value == nil || s.changed[flag] {
		return
	}
	next := make(map[string][]int, len(value))
	for name, codes := range value {
		next[name] = append([]int(nil), codes...)
	}
	*dst = next
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setIntsFromString parses a comma-separated list.
func (s *configSetter) setIntsFromString(flag, value string, dst *[]int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	list, err := parseIntList(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	s.setInts(flag, list, dst)
	return nil
}

// setTolerancesFromString parses the "name=code,code;name=code" form.
func (s *configSetter) setTolerancesFromString(flag, value string, dst *map[string][]int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	t, err := ParseTolerances(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = t
	return nil
}
