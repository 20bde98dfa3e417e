package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one session-scoped fact that already happened, fanned out to
// every connected client of that session.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEvent builds an event with a fresh ID, marshalling payload to JSON.
func NewEvent(sessionID uuid.UUID, eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New(),
		SessionID: sessionID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// wireEnvelope is the broker wire form of an Event. Publisher and consumer
// both use it, so the field names change together or not at all.
type wireEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalWire encodes the event in its broker envelope form.
func (e Event) MarshalWire() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		EventID:   e.ID.String(),
		EventType: e.EventType,
		SessionID: e.SessionID.String(),
		Timestamp: e.CreatedAt,
		Payload:   e.Payload,
	})
}

// UnmarshalWire decodes a broker envelope back into an Event.
func UnmarshalWire(data []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return Event{}, fmt.Errorf("parse event id: %w", err)
	}
	sessionID, err := uuid.Parse(env.SessionID)
	if err != nil {
		return Event{}, fmt.Errorf("parse session id: %w", err)
	}
	return Event{
		ID:        id,
		SessionID: sessionID,
		EventType: env.EventType,
		Payload:   env.Payload,
		CreatedAt: env.Timestamp,
	}, nil
}

// Publisher delivers events to whatever broker fans them out to gateways.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
