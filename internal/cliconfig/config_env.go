package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (GO2RELAY_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("robot-addr", os.Getenv("GO2RELAY_ROBOT_ADDR"), &cfg.RobotAddr)
	s.setString("listen", os.Getenv("GO2RELAY_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("log-level", os.Getenv("GO2RELAY_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("mqtt-broker", os.Getenv("GO2RELAY_MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("mqtt-topic", os.Getenv("GO2RELAY_MQTT_TOPIC"), &cfg.MQTTTopic)
	s.setString("mqtt-client-id", os.Getenv("GO2RELAY_MQTT_CLIENT_ID"), &cfg.MQTTClientID)

	if err := s.setDuration("keepalive-interval", os.Getenv("GO2RELAY_KEEPALIVE_INTERVAL"), &cfg.KeepaliveInterval); err != nil {
		return err
	}
	if err := s.setDuration("activity-window", os.Getenv("GO2RELAY_ACTIVITY_WINDOW"), &cfg.ActivityWindow); err != nil {
		return err
	}
	if err := s.setDuration("command-timeout", os.Getenv("GO2RELAY_COMMAND_TIMEOUT"), &cfg.CommandTimeout); err != nil {
		return err
	}
	if err := s.setDuration("motion-mode-timeout", os.Getenv("GO2RELAY_MOTION_MODE_TIMEOUT"), &cfg.MotionModeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("request-timeout", os.Getenv("GO2RELAY_REQUEST_TIMEOUT"), &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := s.setDuration("result-ttl", os.Getenv("GO2RELAY_RESULT_TTL"), &cfg.ResultTTL); err != nil {
		return err
	}
	if err := s.setDuration("mqtt-interval", os.Getenv("GO2RELAY_MQTT_INTERVAL"), &cfg.MQTTInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("jpeg-quality", os.Getenv("GO2RELAY_JPEG_QUALITY"), &cfg.JPEGQuality); err != nil {
		return err
	}
	if err := s.setIntFromString("input-min-length", os.Getenv("GO2RELAY_INPUT_MIN_LENGTH"), &cfg.InputMinLength); err != nil {
		return err
	}
	if err := s.setFloatFromString("deadzone", os.Getenv("GO2RELAY_DEADZONE"), &cfg.Deadzone); err != nil {
		return err
	}
	if err := s.setIntsFromString("button-offsets", os.Getenv("GO2RELAY_BUTTON_OFFSETS"), &cfg.ButtonOffsets); err != nil {
		return err
	}
	if err := s.setIntsFromString("axis-offsets", os.Getenv("GO2RELAY_AXIS_OFFSETS"), &cfg.AxisOffsets); err != nil {
		return err
	}
	if err := s.setTolerancesFromString("tolerances", os.Getenv("GO2RELAY_TOLERANCES"), &cfg.Tolerances); err != nil {
		return err
	}

	s.setBoolFromString("watch-config", os.Getenv("GO2RELAY_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}

// hotEnv maps runtime-tunable settings to their environment variables.
var hotEnv = map[string]string{
	"tolerances":         "GO2RELAY_TOLERANCES",
	"deadzone":           "GO2RELAY_DEADZONE",
	"keepalive-interval": "GO2RELAY_KEEPALIVE_INTERVAL",
}

// PinnedSettings returns the flag names whose value came from a flag or the
// environment. A config reload must not override them.
func PinnedSettings(changed map[string]bool) map[string]bool {
	pinned := make(map[string]bool, len(changed)+len(hotEnv))
	for k, v := range changed {
		if v {
			pinned[k] = true
		}
	}
	for flag, env := range hotEnv {
		if os.Getenv(env) != "" {
			pinned[flag] = true
		}
	}
	return pinned
}
