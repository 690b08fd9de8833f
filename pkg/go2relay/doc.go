// Package go2relay provides an embeddable gateway for a Unitree Go2 robot.
//
// A Relay keeps a session open to the robot bridge, reconnecting with capped
// backoff, and exposes a synchronous command API, battery telemetry and an
// MJPEG video feed. It can run as the go2relay CLI or be embedded in another
// Go program.
//
// # Basic Usage
//
//	cfg := go2relay.Config{
//	    RobotAddr:  "127.0.0.1:8081",
//	    ListenAddr: ":5001",
//	}
//
//	relay, err := go2relay.New(cfg, go2relay.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := relay.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer relay.Stop()
//
//	res, err := relay.ExecuteCommand(ctx, "stand_up")
//
// # Keepalive
//
// After a successful stand_up, balance_stand or recovery_stand the relay
// periodically re-asserts the normal motion mode. It stops on damp, or as
// soon as input from the wireless remote is seen.
//
// # Plugins
//
// Plugins receive a [PluginConfig] with a status source and a [Tuner] that
// adjusts tolerances, deadzone and keepalive interval at runtime:
//
//	relay, err := go2relay.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: path}),
//	    mqttmirror.WithMQTTMirror(mqttmirror.Config{Broker: "tcp://localhost:1883"}),
//	)
//
// # Lifecycle States
//
// A Relay is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Relay.Status] to query it.
package go2relay
