package domain

// Status is the gateway snapshot served to clients and mirrored to MQTT.
type Status struct {
	Connected       bool       `json:"connected"`
	BatterySOC      *float64   `json:"battery_soc"`
	HasVideo        bool       `json:"has_video"`
	SessionState    string     `json:"session_state"`
	KeepaliveActive bool       `json:"keepalive_active"`
	FrameSeq        uint64     `json:"frame_seq"`
	Frames          FrameStats `json:"frames"`
}
