package icebreaker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/models"
)

// ActivityStore is what the icebreaker app needs from the activity layer.
type ActivityStore interface {
	GetActivity(ctx context.Context, id uuid.UUID) (*models.Activity, error)
	UpdateActivity(ctx context.Context, id uuid.UUID, fn func(activity *models.Activity)) (*models.Activity, error)
}

// SessionReader is what the icebreaker app needs from the session layer.
type SessionReader interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// App applies engine turns to a stored icebreaker activity. Participants are
// read from the owning session at call time so late joiners enter the
// rotation.
type App struct {
	engine     *Engine
	activities ActivityStore
	sessions   SessionReader
}

func NewApp(engine *Engine, activities ActivityStore, sessions SessionReader) *App {
	return &App{engine: engine, activities: activities, sessions: sessions}
}

// Initialize starts the game on an icebreaker activity.
func (a *App) Initialize(ctx context.Context, activityID uuid.UUID) (*models.Activity, error) {
	return a.apply(ctx, activityID, "initialize", a.engine.Initialize)
}

// ChangeQuestion swaps the current player's question.
func (a *App) ChangeQuestion(ctx context.Context, activityID uuid.UUID) (*models.Activity, error) {
	return a.apply(ctx, activityID, "change question", func(activity *models.Activity, _ []models.Participant) error {
		return a.engine.ChangeQuestion(activity)
	})
}

// ChangePlayer rotates the turn to an unasked participant, or signals round
// completion.
func (a *App) ChangePlayer(ctx context.Context, activityID uuid.UUID) (*models.Activity, error) {
	return a.apply(ctx, activityID, "change player", a.engine.ChangePlayer)
}

// Restart begins a fresh round, discarding prior history.
func (a *App) Restart(ctx context.Context, activityID uuid.UUID) (*models.Activity, error) {
	return a.apply(ctx, activityID, "restart", a.engine.Restart)
}

func (a *App) apply(ctx context.Context, activityID uuid.UUID, op string, fn func(*models.Activity, []models.Participant) error) (*models.Activity, error) {
	existing, err := a.activities.GetActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if existing.Type != models.ActivityIceBreaker {
		return nil, fmt.Errorf("activity %s is not an icebreaker", activityID)
	}

	session, err := a.sessions.GetSession(ctx, existing.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session participants: %w", err)
	}

	var engineErr error
	activity, err := a.activities.UpdateActivity(ctx, activityID, func(activity *models.Activity) {
		engineErr = fn(activity, session.Participants)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s icebreaker: %w", op, err)
	}
	if engineErr != nil {
		return nil, engineErr
	}

	log.Info().
		Str("activity_id", activityID.String()).
		Str("session_id", existing.SessionID.String()).
		Bool("all_players_asked", activity.AllPlayersAsked).
		Msgf("icebreaker %s applied", op)
	return activity, nil
}
