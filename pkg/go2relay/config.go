package go2relay

import (
	"fmt"
	"time"

	"github.com/bft-labs/go2relay/internal/app"
	"github.com/bft-labs/go2relay/internal/domain"
)

// Config configures a Relay. Zero values are replaced by SetDefaults.
type Config struct {
	// RobotAddr is the bridge address, host:port or a ws:// URL.
	RobotAddr string

	// ListenAddr is the HTTP API address. Empty disables the HTTP API.
	ListenAddr string

	JPEGQuality int

	KeepaliveInterval time.Duration
	ActivityWindow    time.Duration

	// Deadzone is the stick magnitude at or below which input is idle.
	// Nil uses the default; zero makes any deflection count.
	Deadzone       *float64
	InputMinLength int
	ButtonOffsets  []int
	AxisOffsets    []int

	CommandTimeout    time.Duration
	MotionModeTimeout time.Duration
	RequestTimeout    time.Duration
	ResultTTL         time.Duration

	// Tolerances overrides the extra success codes per command.
	Tolerances map[string][]int
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	layout := app.DefaultInputLayout()
	if c.JPEGQuality == 0 {
		c.JPEGQuality = 85
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = app.DefaultKeepaliveInterval
	}
	if c.ActivityWindow <= 0 {
		c.ActivityWindow = app.DefaultActivityWindow
	}
	if c.Deadzone == nil {
		dz := layout.Deadzone
		c.Deadzone = &dz
	}
	if c.InputMinLength <= 0 {
		c.InputMinLength = layout.MinLength
	}
	if len(c.ButtonOffsets) == 0 {
		c.ButtonOffsets = layout.ButtonOffsets
	}
	if len(c.AxisOffsets) == 0 {
		c.AxisOffsets = layout.AxisOffsets
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = app.DefaultCommandTimeout
	}
	if c.MotionModeTimeout <= 0 {
		c.MotionModeTimeout = app.DefaultMotionModeTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = app.DefaultRequestTimeout
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = app.DefaultResultTTL
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.RobotAddr == "" {
		return fmt.Errorf("%w: robot address is required", domain.ErrInvalidConfig)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality %d not in 1..100", domain.ErrInvalidConfig, c.JPEGQuality)
	}
	if c.Deadzone != nil && *c.Deadzone < 0 {
		return fmt.Errorf("%w: negative deadzone", domain.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) inputLayout() app.InputLayout {
	return app.InputLayout{
		MinLength:     c.InputMinLength,
		ButtonOffsets: append([]int(nil), c.ButtonOffsets...),
		AxisOffsets:   append([]int(nil), c.AxisOffsets...),
		Deadzone:      *c.Deadzone,
	}
}
