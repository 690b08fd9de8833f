package domain

import "time"

// CommandRequest is a queued sport command. Immutable once enqueued.
type CommandRequest struct {
	CommandID   string
	APIID       int
	ResultID    string
	SubmittedAt time.Time
}

// MotionModeRequest asks the motion switcher to change mode.
// One-way requests (keepalive pings) carry no ResultID and are never answered.
type MotionModeRequest struct {
	Mode        string
	Reason      string
	ResultID    string
	OneWay      bool
	SubmittedAt time.Time
}

// CommandResult is the outcome of one request, written once per ResultID.
type CommandResult struct {
	ResultID  string `json:"result_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RawStatus int    `json:"raw_status"`
}
