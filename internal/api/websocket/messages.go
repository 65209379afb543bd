package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Instrument session messages
	MessageTypeInstrumentConnected    MessageType = "instrument_connected"
	MessageTypeInstrumentDisconnected MessageType = "instrument_disconnected"
	MessageTypePropertyChanged        MessageType = "property_changed"

	// Acquisition messages
	MessageTypeAcquisitionCompleted MessageType = "acquisition_completed"
	MessageTypeAcquisitionFailed    MessageType = "acquisition_failed"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"

	// Client control
	MessageTypeSubscribe  MessageType = "subscribe"
	MessageTypeSubscribed MessageType = "subscribed"
	MessageTypeError      MessageType = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ClientMessage is what clients send. Subscribe with an empty Events
// list receives everything again.
type ClientMessage struct {
	Type   MessageType   `json:"type"`
	Events []MessageType `json:"events,omitempty"`
}

type SubscriptionData struct {
	Events []MessageType `json:"events"`
}

type ErrorData struct {
	Reason string `json:"reason"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
