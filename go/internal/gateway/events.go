package gateway

import (
	"encoding/json"
	"time"

	"github.com/retrolive/retrolive/go/internal/changefeed"
)

// SessionEvent is the wire shape pushed to WebSocket clients.
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType names what happened in the session.
type EventType string

const (
	EventTypeCardAdded              EventType = "CardAdded"
	EventTypeCardUpdated            EventType = "CardUpdated"
	EventTypeCardDeleted            EventType = "CardDeleted"
	EventTypeCardsVisibilityChanged EventType = "CardsVisibilityChanged"
	EventTypeActivityAdded          EventType = "ActivityAdded"
	EventTypeActivityLaunched       EventType = "ActivityLaunched"
	EventTypeActivityCompleted      EventType = "ActivityCompleted"
	EventTypeActivityDeleted        EventType = "ActivityDeleted"
	EventTypeSessionUpdated         EventType = "SessionUpdated"
	EventTypeSessionClosed          EventType = "SessionClosed"
	EventTypeParticipantJoined      EventType = "ParticipantJoined"
	EventTypePresenceChanged        EventType = "PresenceChanged"
	EventTypeTurnChanged            EventType = "TurnChanged"
	EventTypeTimerStarted           EventType = "TimerStarted"
	EventTypeTimerPaused            EventType = "TimerPaused"
	EventTypeTimerResumed           EventType = "TimerResumed"
	EventTypeTimerStopped           EventType = "TimerStopped"
	EventTypeTimerCompleted         EventType = "TimerCompleted"

	// EventTypeStreamConnected is generated locally when a client's socket
	// joins the session pool; it never arrives via the broker.
	EventTypeStreamConnected EventType = "StreamConnected"
)

// knownEventTypes guards the feed-to-WebSocket boundary: an unrecognized
// broker event is dropped rather than forwarded.
var knownEventTypes = map[EventType]bool{
	EventTypeCardAdded:              true,
	EventTypeCardUpdated:            true,
	EventTypeCardDeleted:            true,
	EventTypeCardsVisibilityChanged: true,
	EventTypeActivityAdded:          true,
	EventTypeActivityLaunched:       true,
	EventTypeActivityCompleted:      true,
	EventTypeActivityDeleted:        true,
	EventTypeSessionUpdated:         true,
	EventTypeSessionClosed:          true,
	EventTypeParticipantJoined:      true,
	EventTypePresenceChanged:        true,
	EventTypeTurnChanged:            true,
	EventTypeTimerStarted:           true,
	EventTypeTimerPaused:            true,
	EventTypeTimerResumed:           true,
	EventTypeTimerStopped:           true,
	EventTypeTimerCompleted:         true,
}

// KnownEventType reports whether the gateway forwards events of this type.
func KnownEventType(t EventType) bool {
	return knownEventTypes[t]
}

// FromFeed converts a change feed event into the WebSocket wire shape.
func FromFeed(event changefeed.Event) *SessionEvent {
	return &SessionEvent{
		ID:        event.ID.String(),
		SessionID: event.SessionID.String(),
		Type:      EventType(event.EventType),
		Timestamp: event.CreatedAt,
		Data:      event.Payload,
	}
}
