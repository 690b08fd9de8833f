package configwatcher

import "github.com/bft-labs/go2relay/pkg/go2relay"

// WithConfigWatcher returns a go2relay Option that reloads tolerances,
// deadzone and keepalive interval when the config file changes.
//
// Usage:
//
//	r, err := go2relay.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/go2relay/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) go2relay.Option {
	return go2relay.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher watches ~/.go2relay/config.toml.
func WithDefaultConfigWatcher() go2relay.Option {
	return WithConfigWatcher(DefaultConfig())
}
