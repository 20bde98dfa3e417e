package models

import (
	"time"

	"github.com/google/uuid"
)

// ColumnType identifies the column a card belongs to. Columns come from a
// small fixed taxonomy grouped by the activity type that displays them.
type ColumnType string

const (
	ColumnMad  ColumnType = "mad"
	ColumnSad  ColumnType = "sad"
	ColumnGlad ColumnType = "glad"

	ColumnStart    ColumnType = "start"
	ColumnStop     ColumnType = "stop"
	ColumnContinue ColumnType = "continue"

	ColumnLiked   ColumnType = "liked"
	ColumnLearned ColumnType = "learned"
	ColumnLacked  ColumnType = "lacked"
)

// Card is a single text note placed in one column. Its visibility flag is
// fixed at creation time from the session default and only changed afterwards
// by explicit admin toggles.
type Card struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	Text      string     `json:"text"`
	Author    string     `json:"author"`
	Column    ColumnType `json:"column"`
	IsVisible *bool      `json:"is_visible,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Visible reports the effective visibility of the card. A card written
// without the flag (legacy data) is treated as visible.
func (c *Card) Visible() bool {
	if c.IsVisible == nil {
		return true
	}
	return *c.IsVisible
}
