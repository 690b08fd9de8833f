package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/go2relay/internal/cliconfig"
	"github.com/bft-labs/go2relay/pkg/go2relay"
	"github.com/bft-labs/go2relay/pkg/log"
	"github.com/bft-labs/go2relay/plugins/configwatcher"
	"github.com/bft-labs/go2relay/plugins/mqttmirror"
)

const helpDescription = `
Keep a Unitree Go2 connected and drive it over plain HTTP.

Highlights:
  - Reconnects with capped backoff; queued commands survive session loss.
  - Synchronous command API with per-command success tolerances.
  - MJPEG video feed at /video_feed, battery and status as JSON.
  - Keeps the robot standing after stand_up and yields the moment the
    wireless remote is touched.
  - Optional status mirror to an MQTT broker; tolerances, deadzone and
    keepalive interval reload when the config file changes.

The relay dials a local bridge that terminates the robot's WebRTC session.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  go2relay --robot-addr 127.0.0.1:8081 --listen :5001
  go2relay --config $HOME/.go2relay/config.toml --mqtt-broker tcp://localhost:1883
  GO2RELAY_TOLERANCES="sit=-1;stand_down=-1,3" go2relay
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var tolerances string

	logger := cliconfig.Logger(cfg.LogLevel)

	root := &cobra.Command{
		Use:     "go2relay",
		Short:   "HTTP gateway for a Unitree Go2 robot",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["tolerances"] {
				parsed, err := cliconfig.ParseTolerances(tolerances)
				if err != nil {
					return fmt.Errorf("parse tolerances: %w", err)
				}
				cfg.Tolerances = parsed
			}

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger = cliconfig.Logger(cfg.LogLevel)
			logger.Info().Interface("config", cfg).Msg("configuration")

			opts := []go2relay.Option{
				go2relay.WithLogger(log.NewZerologAdapterWithLogger(logger)),
			}
			if cfg.WatchConfig && cfgFile != "" && cliconfig.FileExists(cfgFile) {
				opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
					Path:   cfgFile,
					Pinned: cliconfig.PinnedSettings(changed),
				}))
			}
			if cfg.MQTTBroker != "" {
				opts = append(opts, mqttmirror.WithMQTTMirror(mqttmirror.Config{
					Broker:   cfg.MQTTBroker,
					Topic:    cfg.MQTTTopic,
					ClientID: cfg.MQTTClientID,
					Interval: cfg.MQTTInterval,
				}))
			}

			r, err := go2relay.New(go2relay.Config{
				RobotAddr:         cfg.RobotAddr,
				ListenAddr:        cfg.ListenAddr,
				JPEGQuality:       cfg.JPEGQuality,
				KeepaliveInterval: cfg.KeepaliveInterval,
				ActivityWindow:    cfg.ActivityWindow,
				Deadzone:          &cfg.Deadzone,
				InputMinLength:    cfg.InputMinLength,
				ButtonOffsets:     cfg.ButtonOffsets,
				AxisOffsets:       cfg.AxisOffsets,
				CommandTimeout:    cfg.CommandTimeout,
				MotionModeTimeout: cfg.MotionModeTimeout,
				RequestTimeout:    cfg.RequestTimeout,
				ResultTTL:         cfg.ResultTTL,
				Tolerances:        cfg.Tolerances,
			}, opts...)
			if err != nil {
				return fmt.Errorf("create relay: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := r.Start(ctx); err != nil {
				return fmt.Errorf("start relay: %w", err)
			}

			crashed := make(chan struct{})
			go func() {
				ticker := time.NewTicker(250 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if r.Status() == go2relay.StateCrashed {
							close(crashed)
							return
						}
					}
				}
			}()

			select {
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("received signal, stopping...")
			case <-crashed:
				logger.Error().Msg("relay crashed")
				return fmt.Errorf("relay crashed")
			}

			if err := r.Stop(); err != nil {
				return fmt.Errorf("stop relay: %w", err)
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.go2relay/config.toml)")
	root.Flags().StringVar(&cfg.RobotAddr, "robot-addr", cfg.RobotAddr, "robot bridge address (host:port or ws:// URL)")
	root.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP API listen address (empty disables)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.Flags().IntVar(&cfg.JPEGQuality, "jpeg-quality", cfg.JPEGQuality, "JPEG quality of the video feed (1-100)")
	root.Flags().DurationVar(&cfg.KeepaliveInterval, "keepalive-interval", cfg.KeepaliveInterval, "interval between motion keepalive pings")
	root.Flags().DurationVar(&cfg.ActivityWindow, "activity-window", cfg.ActivityWindow, "remote input within this window stops the keepalive")

	root.Flags().Float64Var(&cfg.Deadzone, "deadzone", cfg.Deadzone, "stick deadzone for human input detection")
	root.Flags().IntVar(&cfg.InputMinLength, "input-min-length", cfg.InputMinLength, "minimum wireless remote payload length")
	root.Flags().IntSliceVar(&cfg.ButtonOffsets, "button-offsets", cfg.ButtonOffsets, "byte offsets of the remote button fields")
	root.Flags().IntSliceVar(&cfg.AxisOffsets, "axis-offsets", cfg.AxisOffsets, "byte offsets of the remote float32 stick axes")

	root.Flags().DurationVar(&cfg.CommandTimeout, "command-timeout", cfg.CommandTimeout, "how long POST /command waits for a result")
	root.Flags().DurationVar(&cfg.MotionModeTimeout, "motion-mode-timeout", cfg.MotionModeTimeout, "how long POST /motion_mode waits for a result")
	root.Flags().DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "per-request timeout on the robot session")
	root.Flags().DurationVar(&cfg.ResultTTL, "result-ttl", cfg.ResultTTL, "grace period before unclaimed results are evicted")
	root.Flags().StringVar(&tolerances, "tolerances", "", `extra success codes per command, e.g. "sit=-1;stand_down=-1,3"`)

	root.Flags().StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker URL for the status mirror (empty disables)")
	root.Flags().StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT topic for status messages")
	root.Flags().StringVar(&cfg.MQTTClientID, "mqtt-client-id", cfg.MQTTClientID, "MQTT client id")
	root.Flags().DurationVar(&cfg.MQTTInterval, "mqtt-interval", cfg.MQTTInterval, "interval between MQTT status messages")

	root.Flags().BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload tolerances, deadzone and keepalive interval when the config file changes")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("go2relay")
		os.Exit(1)
	}
}
