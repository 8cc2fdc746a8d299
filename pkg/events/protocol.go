package events

import "encoding/json"

// Websocket command actions sent by sessions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Frame types sent by the gateway.
const (
	FrameEvent = "event"
	FrameAck   = "ack"
	FrameError = "error"
)

// Command is a session request to change its subscriptions.
type Command struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// Frame is every message the gateway writes to a session.
type Frame struct {
	Type   string          `json:"type"`
	Topic  string          `json:"topic,omitempty"`
	Action string          `json:"action,omitempty"`
	Error  string          `json:"error,omitempty"`
	Event  json.RawMessage `json:"event,omitempty"`
}
