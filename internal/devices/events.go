package devices

const (
	EventInstrumentConnected    = "instrument_connected"
	EventInstrumentDisconnected = "instrument_disconnected"
	EventAcquisitionCompleted   = "acquisition_completed"
	EventAcquisitionFailed      = "acquisition_failed"
	EventPropertyChanged        = "property_changed"
)

// Publisher receives session events; the websocket hub and the gRPC
// streamer implement it.
type Publisher interface {
	Publish(event string, data any)
}

type discard struct{}

func (discard) Publish(string, any) {}

type PropertyChange struct {
	SessionID string `json:"session_id"`
	Name      string `json:"instrument"`
	Channel   int    `json:"channel"`
	Property  string `json:"property"`
	Value     any    `json:"value"`
}

type AcquisitionEvent struct {
	SessionID  string  `json:"session_id"`
	Name       string  `json:"instrument"`
	Channel    int     `json:"channel"`
	Ports      []int   `json:"ports,omitempty"`
	Points     int     `json:"points,omitempty"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// Fanout hands every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(event string, data any) {
	for _, p := range f {
		p.Publish(event, data)
	}
}
