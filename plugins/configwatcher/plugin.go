// Package configwatcher reloads go2relay settings when the config file changes.
// The tolerance table, stick deadzone and keepalive interval are applied to
// the running relay without a restart.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/go2relay/internal/cliconfig"
	"github.com/bft-labs/go2relay/pkg/go2relay"
	"github.com/bft-labs/go2relay/pkg/log"
)

// Flag names of the settings that can change at runtime.
const (
	keyTolerances        = "tolerances"
	keyDeadzone          = "deadzone"
	keyKeepaliveInterval = "keepalive-interval"
)

// Plugin watches a TOML config file and pushes hot settings to the relay.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	pinned        map[string]bool

	logger   log.Logger
	tuner    go2relay.Tuner
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Pinned lists flag names set on the command line or in the environment.
	// Pinned settings keep their value across reloads.
	Pinned map[string]bool
}

// DefaultConfig returns a Config watching the default config path.
func DefaultConfig() Config {
	return Config{
		Path:          cliconfig.DefaultConfigPath(),
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	pinned := make(map[string]bool, len(cfg.Pinned))
	for k, v := range cfg.Pinned {
		pinned[k] = v
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		pinned:        pinned,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
func (p *Plugin) Initialize(ctx context.Context, cfg go2relay.PluginConfig) error {
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.tuner = cfg.Tuner

	if p.path == "" || p.tuner == nil {
		p.logger.Warn("config watcher disabled: no config path or tuner")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher started", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Reloads returns the number of successful reloads.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()
	defer p.watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := p.reload(); err != nil {
			p.logger.Warn("config reload failed, keeping current settings",
				log.String("path", p.path),
				log.Err(err))
		}
	})
}

// reload reads the file and applies the hot settings that are not pinned.
func (p *Plugin) reload() error {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		return err
	}

	cfg := cliconfig.DefaultConfig()
	if err := cliconfig.ApplyFileConfig(&cfg, fc, p.pinned); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !p.pinned[keyTolerances] {
		p.tuner.SetTolerances(cfg.Tolerances)
	}
	if !p.pinned[keyDeadzone] {
		p.tuner.SetDeadzone(cfg.Deadzone)
	}
	if !p.pinned[keyKeepaliveInterval] {
		p.tuner.SetKeepaliveInterval(cfg.KeepaliveInterval)
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()

	p.logger.Info("config reloaded", log.String("path", p.path))
	return nil
}

var _ go2relay.Plugin = (*Plugin)(nil)
