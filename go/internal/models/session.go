package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle status of a session.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusPaused SessionStatus = "paused"
	SessionStatusClosed SessionStatus = "closed"
)

// AdminUnassigned is the sentinel CreatedBy value for a session that has no
// authoritative owner yet.
const AdminUnassigned = "unassigned"

// PresenceState defines a participant's presence within a session.
type PresenceState string

const (
	PresenceOnline PresenceState = "online"
	PresenceAway   PresenceState = "away"
)

// Participant is one member of a session, embedded in the session document.
type Participant struct {
	ID          uuid.UUID     `json:"id"`
	DisplayName string        `json:"display_name"`
	JoinedAt    time.Time     `json:"joined_at"`
	Presence    PresenceState `json:"presence"`
}

// Session is the top-level collaborative unit. It owns participants, cards,
// activities and the shared timer, and is deleted (not just marked closed)
// when the retrospective ends.
type Session struct {
	ID                uuid.UUID     `json:"id"`
	ShareCode         string        `json:"share_code"`
	Status            SessionStatus `json:"status"`
	AdminID           string        `json:"admin_id"`
	CreatedBy         string        `json:"created_by"`
	Participants      []Participant `json:"participants"`
	CardsVisible      bool          `json:"cards_visible"`
	CurrentActivityID *uuid.UUID    `json:"current_activity_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// FindParticipant returns the participant whose display name matches name
// case-insensitively, or nil.
func (s *Session) FindParticipant(name string) *Participant {
	for i := range s.Participants {
		if strings.EqualFold(s.Participants[i].DisplayName, name) {
			return &s.Participants[i]
		}
	}
	return nil
}
