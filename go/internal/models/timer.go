package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerState is the shared countdown for one session. At most one exists per
// session, stored under the session's ID.
//
// EndTime is authoritative only while IsRunning; while paused, the remaining
// time lives in DurationMinutes (whole minutes, rounded up) and EndTime is
// stale.
type TimerState struct {
	SessionID       uuid.UUID  `json:"session_id"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	IsRunning       bool       `json:"is_running"`
	IsComplete      bool       `json:"is_complete"`
	DurationMinutes int        `json:"duration_minutes"`
}

// Remaining returns the time left on the timer as derived at now. Paused
// timers report their stored minutes; completed or idle timers report zero.
func (t *TimerState) Remaining(now time.Time) time.Duration {
	if t.IsComplete {
		return 0
	}
	if !t.IsRunning {
		return time.Duration(t.DurationMinutes) * time.Minute
	}
	if t.EndTime == nil {
		return 0
	}
	rem := t.EndTime.Sub(now)
	if rem < 0 {
		return 0
	}
	return rem
}
