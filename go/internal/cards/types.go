package cards

import (
	"github.com/google/uuid"

	"github.com/retrolive/retrolive/go/internal/models"
)

// AddCardRequest carries everything needed to create one card. Visibility is
// explicit: callers normally pass the session's current default.
type AddCardRequest struct {
	SessionID  uuid.UUID
	Text       string
	Column     models.ColumnType
	Author     string
	IsVisible  bool
}
