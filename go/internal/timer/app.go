package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/models"
)

// App owns timer state transitions:
//
//	idle -> running <-> paused -> ... -> complete -> idle (stop) or deleted
//
// All math runs against store time, never the client clock.
type App struct {
	repo *Repository
}

func NewApp(repo *Repository) *App {
	return &App{repo: repo}
}

// Start begins a countdown of the given whole minutes, replacing any existing
// timer for the session.
func (a *App) Start(ctx context.Context, sessionID uuid.UUID, minutes int) (*models.TimerState, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("session_id is required")
	}
	if minutes <= 0 {
		return nil, fmt.Errorf("timer duration must be positive")
	}

	end := a.repo.Now(ctx).Add(time.Duration(minutes) * time.Minute)
	state := &models.TimerState{
		SessionID:       sessionID,
		EndTime:         &end,
		IsRunning:       true,
		IsComplete:      false,
		DurationMinutes: minutes,
	}
	if err := a.repo.PutTimer(ctx, state); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Int("minutes", minutes).
		Time("end_time", end).
		Msg("timer started")
	return state, nil
}

// Pause freezes the countdown, capturing the remaining whole minutes
// (rounded up). Pausing a timer that already expired completes it instead;
// a pause requested after expiry must not resurrect running state. Pausing a
// completed timer is a no-op.
func (a *App) Pause(ctx context.Context, sessionID uuid.UUID) (*models.TimerState, error) {
	now := a.repo.Now(ctx)
	state, err := a.repo.UpdateTimer(ctx, sessionID, func(state *models.TimerState) {
		if state.IsComplete || !state.IsRunning || state.EndTime == nil {
			return
		}
		remaining := state.EndTime.Sub(now)
		if remaining <= 0 {
			state.IsComplete = true
			state.IsRunning = false
			return
		}
		state.DurationMinutes = int((remaining + time.Minute - 1) / time.Minute)
		state.IsRunning = false
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Bool("complete", state.IsComplete).
		Int("remaining_minutes", state.DurationMinutes).
		Msg("timer paused")
	return state, nil
}

// Resume continues a paused countdown from its stored remaining minutes.
// Resuming a completed timer is a no-op.
func (a *App) Resume(ctx context.Context, sessionID uuid.UUID) (*models.TimerState, error) {
	now := a.repo.Now(ctx)
	state, err := a.repo.UpdateTimer(ctx, sessionID, func(state *models.TimerState) {
		if state.IsComplete || state.IsRunning {
			return
		}
		end := now.Add(time.Duration(state.DurationMinutes) * time.Minute)
		state.EndTime = &end
		state.IsRunning = true
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID.String()).Msg("timer resumed")
	return state, nil
}

// Stop returns the timer to idle without deleting the document.
func (a *App) Stop(ctx context.Context, sessionID uuid.UUID) (*models.TimerState, error) {
	state, err := a.repo.UpdateTimer(ctx, sessionID, func(state *models.TimerState) {
		state.EndTime = nil
		state.IsRunning = false
		state.IsComplete = false
		state.DurationMinutes = 0
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID.String()).Msg("timer stopped")
	return state, nil
}

// Complete marks the timer finished. Any subscriber that locally observes
// expiry writes this; duplicate writes are harmless last-write-wins updates,
// so no coordination is needed between racing writers.
func (a *App) Complete(ctx context.Context, sessionID uuid.UUID) (*models.TimerState, error) {
	state, err := a.repo.UpdateTimer(ctx, sessionID, func(state *models.TimerState) {
		if state.IsComplete {
			return
		}
		state.IsComplete = true
		state.IsRunning = false
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID.String()).Msg("timer completed")
	return state, nil
}

// Get returns the session's timer, or docstore.ErrNotFound when idle with no
// document.
func (a *App) Get(ctx context.Context, sessionID uuid.UUID) (*models.TimerState, error) {
	return a.repo.GetTimer(ctx, sessionID)
}

// Delete removes the timer document entirely.
func (a *App) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return a.repo.DeleteTimer(ctx, sessionID)
}

// Subscribe streams the session's timer document.
func (a *App) Subscribe(ctx context.Context, sessionID uuid.UUID, fn func(*models.TimerState)) (func(), error) {
	return a.repo.WatchTimer(ctx, sessionID, fn)
}
