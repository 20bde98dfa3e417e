package authority

import (
	"github.com/retrolive/retrolive/go/internal/models"
)

// IsAdmin reports whether the given local display name is the session's
// authoritative owner. AdminID wins when set; otherwise the legacy CreatedBy
// field decides unless it still holds the unassigned sentinel.
//
// Comparison is case-sensitive and purely advisory: any client can claim any
// display name, and no server-side authentication boundary exists. The
// identity is an explicit argument so the derivation stays a pure function of
// (session snapshot, name).
func IsAdmin(session *models.Session, displayName string) bool {
	if session == nil || displayName == "" {
		return false
	}
	if session.AdminID != "" {
		return session.AdminID == displayName
	}
	if session.CreatedBy != "" && session.CreatedBy != models.AdminUnassigned {
		return session.CreatedBy == displayName
	}
	return false
}
