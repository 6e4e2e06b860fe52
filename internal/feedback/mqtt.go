package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTopic is where swipe events are published.
const DefaultTopic = "timecard/swipes"

// Publisher sends payloads to a broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// Payload is the JSON body of an MQTT swipe event.
type Payload struct {
	Swipe SwipePayload `json:"swipe"`
}

type SwipePayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Reader    string `json:"reader"`
	Badge     string `json:"badge"`
	Holder    string `json:"holder,omitempty"`
	Outcome   string `json:"outcome"`
	Action    string `json:"action,omitempty"`
	State     string `json:"state,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for ev.
func FormatPayload(ev Event) ([]byte, error) {
	return json.Marshal(Payload{Swipe: SwipePayload{
		ID:        ev.SwipeID,
		Timestamp: ev.At.UTC().Format(time.RFC3339),
		Reader:    ev.ReaderID,
		Badge:     ev.BadgeID,
		Holder:    ev.Holder,
		Outcome:   ev.Outcome,
		Action:    ev.Action,
		State:     ev.State,
		Reason:    ev.Reason,
	}})
}

// MQTTSink publishes every event, suppressed ones included, to Topic.
type MQTTSink struct {
	Publisher Publisher
	Topic     string
}

func (s MQTTSink) Notify(_ context.Context, ev Event) error {
	payload, err := FormatPayload(ev)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	topic := s.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return s.Publisher.Publish(topic, payload)
}
