package mqttmirror

import "github.com/bft-labs/go2relay/pkg/go2relay"

// WithMQTTMirror returns a go2relay Option that publishes the relay status
// to an MQTT broker at a fixed interval.
//
// Usage:
//
//	r, err := go2relay.New(cfg,
//	    mqttmirror.WithMQTTMirror(mqttmirror.Config{
//	        Broker: "tcp://localhost:1883",
//	        Topic:  "robots/go2/status",
//	    }),
//	)
func WithMQTTMirror(cfg Config) go2relay.Option {
	return go2relay.WithPlugin(New(cfg))
}
