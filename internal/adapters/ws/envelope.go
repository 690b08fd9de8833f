package ws

import "encoding/json"

// Envelope types exchanged with the bridge.
const (
	typeRequest   = "req"
	typeResponse  = "res"
	typeMessage   = "msg"
	typeSubscribe = "sub"
	typeVideo     = "video"
)

// envelope is the JSON frame for every text message on the socket.
type envelope struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// replyData is the payload of a "res" envelope.
type replyData struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
