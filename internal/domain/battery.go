package domain

// BatteryState is the last battery reading pushed by the robot.
// Nil readings mean no low-state message has been decoded yet.
type BatteryState struct {
	SOC       *float64 `json:"soc"`
	Voltage   *float64 `json:"voltage"`
	Current   *float64 `json:"current"`
	Connected bool     `json:"connected"`
}
