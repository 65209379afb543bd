package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event is one session event as it goes out to gRPC subscribers.
type Event struct {
	Type      string
	Timestamp time.Time
	Payload   *structpb.Struct
}

type subscription struct {
	ch chan *Event
	// nil receives every event
	events map[string]bool
}

// EventStreamer fans session events out to gRPC subscribers. It is a
// devices.Publisher.
type EventStreamer struct {
	mu          sync.RWMutex
	subscribers map[<-chan *Event]*subscription
	closed      bool
	logger      *zap.Logger
}

func NewEventStreamer(logger *zap.Logger) *EventStreamer {
	return &EventStreamer{
		subscribers: make(map[<-chan *Event]*subscription),
		logger:      logger,
	}
}

// Subscribe returns a channel of the named events, or of all events when
// events is empty. The channel is closed by Unsubscribe or Close.
func (s *EventStreamer) Subscribe(events []string) <-chan *Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription{ch: make(chan *Event, 100)}
	if len(events) > 0 {
		sub.events = make(map[string]bool, len(events))
		for _, e := range events {
			sub.events[e] = true
		}
	}

	if s.closed {
		close(sub.ch)
		return sub.ch
	}
	s.subscribers[sub.ch] = sub
	return sub.ch
}

func (s *EventStreamer) Unsubscribe(ch <-chan *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(sub.ch)
	}
}

func (s *EventStreamer) Publish(event string, data any) {
	payload, err := toStruct(data)
	if err != nil {
		s.logger.Warn("Failed to encode event for gRPC subscribers",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	ev := &Event{Type: event, Timestamp: time.Now().UTC(), Payload: payload}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		if sub.events != nil && !sub.events[event] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Skip if channel is full
		}
	}
}

func (s *EventStreamer) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Close ends every open subscription; later subscriptions end at once.
func (s *EventStreamer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for ch, sub := range s.subscribers {
		delete(s.subscribers, ch)
		close(sub.ch)
	}
}

// toStruct converts anything that marshals to a JSON object.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
