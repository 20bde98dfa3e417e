package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType defines the kind of content an activity displays.
type ActivityType string

const (
	ActivityMadSadGlad        ActivityType = "madSadGlad"
	ActivityStartStopContinue ActivityType = "startStopContinue"
	ActivityLikedLearnedLacked ActivityType = "likedLearnedLacked"
	ActivityIceBreaker        ActivityType = "iceBreaker"
)

// IceBreakerKind is the sub-kind of an icebreaker activity.
type IceBreakerKind string

const (
	IceBreakerQuestions IceBreakerKind = "questions"
)

// ActivityStatus defines the lifecycle status of an activity.
type ActivityStatus string

const (
	ActivityStatusPending   ActivityStatus = "pending"
	ActivityStatusActive    ActivityStatus = "active"
	ActivityStatusCompleted ActivityStatus = "completed"
)

// Turn is the icebreaker engine's current {player, question} assignment.
type Turn struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	QuestionID string    `json:"question_id"`
	Question   string    `json:"question"`
}

// Activity is one unit of session content: a retro board instance or an
// icebreaker game. The icebreaker fields are empty for board activities.
type Activity struct {
	ID          uuid.UUID      `json:"id"`
	SessionID   uuid.UUID      `json:"session_id"`
	Type        ActivityType   `json:"type"`
	Kind        IceBreakerKind `json:"kind,omitempty"`
	Status      ActivityStatus `json:"status"`
	VisibleToAll bool          `json:"visible_to_all"`
	Launched    bool           `json:"launched"`
	AddedBy     string         `json:"added_by"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	// Icebreaker turn state. AskedQuestions and AskedPlayers record the
	// current round's history without replacement.
	AskedQuestions  []string    `json:"asked_questions,omitempty"`
	AskedPlayers    []uuid.UUID `json:"asked_players,omitempty"`
	CurrentTurn     *Turn       `json:"current_turn,omitempty"`
	AllPlayersAsked bool        `json:"all_players_asked,omitempty"`
}

// ColumnsFor returns the column taxonomy displayed by an activity type.
// Icebreaker activities have no columns.
func ColumnsFor(t ActivityType) []ColumnType {
	switch t {
	case ActivityMadSadGlad:
		return []ColumnType{ColumnMad, ColumnSad, ColumnGlad}
	case ActivityStartStopContinue:
		return []ColumnType{ColumnStart, ColumnStop, ColumnContinue}
	case ActivityLikedLearnedLacked:
		return []ColumnType{ColumnLiked, ColumnLearned, ColumnLacked}
	default:
		return nil
	}
}
