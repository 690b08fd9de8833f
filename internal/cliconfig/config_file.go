package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	RobotAddr         string           `toml:"robot_addr"`
	ListenAddr        string           `toml:"listen_addr"`
	JPEGQuality       int              `toml:"jpeg_quality"`
	KeepaliveInterval string           `toml:"keepalive_interval"`
	ActivityWindow    string           `toml:"activity_window"`
	CommandTimeout    string           `toml:"command_timeout"`
	MotionModeTimeout string           `toml:"motion_mode_timeout"`
	RequestTimeout    string           `toml:"request_timeout"`
	ResultTTL         string           `toml:"result_ttl"`
	WatchConfig       *bool            `toml:"watch_config"`
	LogLevel          string           `toml:"log_level"`
	Input             InputFileConfig  `toml:"input"`
	MQTT              MQTTFileConfig   `toml:"mqtt"`
	Tolerances        map[string][]int `toml:"tolerances"`
}

// InputFileConfig is the [input] table: wireless remote layout.
type InputFileConfig struct {
	Deadzone      *float64 `toml:"deadzone"`
	MinLength     int     `toml:"min_length"`
	ButtonOffsets []int   `toml:"button_offsets"`
	AxisOffsets   []int   `toml:"axis_offsets"`
}

// MQTTFileConfig is the [mqtt] table.
type MQTTFileConfig struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	Interval string `toml:"interval"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.go2relay/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".go2relay", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("robot-addr", fc.RobotAddr, &cfg.RobotAddr)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("mqtt-broker", fc.MQTT.Broker, &cfg.MQTTBroker)
	s.setString("mqtt-topic", fc.MQTT.Topic, &cfg.MQTTTopic)
	s.setString("mqtt-client-id", fc.MQTT.ClientID, &cfg.MQTTClientID)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"keepalive-interval", fc.KeepaliveInterval, &cfg.KeepaliveInterval},
		{"activity-window", fc.ActivityWindow, &cfg.ActivityWindow},
		{"command-timeout", fc.CommandTimeout, &cfg.CommandTimeout},
		{"motion-mode-timeout", fc.MotionModeTimeout, &cfg.MotionModeTimeout},
		{"request-timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"result-ttl", fc.ResultTTL, &cfg.ResultTTL},
		{"mqtt-interval", fc.MQTT.Interval, &cfg.MQTTInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("jpeg-quality", fc.JPEGQuality, &cfg.JPEGQuality)
	s.setInt("input-min-length", fc.Input.MinLength, &cfg.InputMinLength)
	s.setFloat("deadzone", fc.Input.Deadzone, &cfg.Deadzone)
	s.setInts("button-offsets", fc.Input.ButtonOffsets, &cfg.ButtonOffsets)
	s.setInts("axis-offsets", fc.Input.AxisOffsets, &cfg.AxisOffsets)

	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)
	s.setTolerances("tolerances", fc.Tolerances, &cfg.Tolerances)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
