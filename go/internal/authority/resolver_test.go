package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/retrolive/retrolive/go/internal/models"
)

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name    string
		session *models.Session
		viewer  string
		want    bool
	}{
		{
			name:    "admin id match",
			session: &models.Session{AdminID: "alice", CreatedBy: "bob"},
			viewer:  "alice",
			want:    true,
		},
		{
			name:    "admin id set shadows created by",
			session: &models.Session{AdminID: "alice", CreatedBy: "bob"},
			viewer:  "bob",
			want:    false,
		},
		{
			name:    "falls back to created by",
			session: &models.Session{CreatedBy: "bob"},
			viewer:  "bob",
			want:    true,
		},
		{
			name:    "unassigned sentinel grants nobody",
			session: &models.Session{CreatedBy: models.AdminUnassigned},
			viewer:  models.AdminUnassigned,
			want:    false,
		},
		{
			name:    "comparison is case sensitive",
			session: &models.Session{AdminID: "Alice"},
			viewer:  "alice",
			want:    false,
		},
		{
			name:    "empty name never holds authority",
			session: &models.Session{AdminID: ""},
			viewer:  "",
			want:    false,
		},
		{
			name:    "nil session",
			session: nil,
			viewer:  "alice",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAdmin(tt.session, tt.viewer))
		})
	}
}
