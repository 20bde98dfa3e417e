package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
	"github.com/retrolive/retrolive/go/internal/visibility"
)

const (
	lookupRetries     = 5
	lookupSettleDelay = 400 * time.Millisecond
)

// AddActivityRequest carries everything needed to create one activity.
type AddActivityRequest struct {
	SessionID uuid.UUID
	Type      models.ActivityType
	Kind      models.IceBreakerKind
	AddedBy   string
}

// App drives the activity state machine:
//
//	pending --launch--> active --complete--> completed
//
// with delete as a terminal side exit from pending or active. Status never
// regresses and launched never reverts.
type App struct {
	repo  *Repository
	clock clockwork.Clock
}

func NewApp(repo *Repository, clock clockwork.Clock) *App {
	return &App{repo: repo, clock: clock}
}

// Add creates an activity in pending state, hidden from participants.
func (a *App) Add(ctx context.Context, req AddActivityRequest) (*models.Activity, error) {
	if req.SessionID == uuid.Nil {
		return nil, fmt.Errorf("session_id is required")
	}
	if req.Type == "" {
		return nil, fmt.Errorf("activity type is required")
	}

	activity := &models.Activity{
		ID:           uuid.New(),
		SessionID:    req.SessionID,
		Type:         req.Type,
		Kind:         req.Kind,
		Status:       models.ActivityStatusPending,
		VisibleToAll: false,
		Launched:     false,
		AddedBy:      req.AddedBy,
		CreatedAt:    a.clock.Now(),
	}
	if err := a.repo.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}

	log.Info().
		Str("activity_id", activity.ID.String()).
		Str("session_id", req.SessionID.String()).
		Str("type", string(req.Type)).
		Msg("activity added")
	return activity, nil
}

// Launch makes a pending activity visible to all participants and marks it
// active. Launching an activity that is not pending is a no-op: the observable
// effect of a double launch is nothing.
func (a *App) Launch(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	now := a.clock.Now()
	activity, err := a.repo.UpdateActivity(ctx, id, func(activity *models.Activity) {
		if activity.Status != models.ActivityStatusPending {
			return
		}
		activity.Status = models.ActivityStatusActive
		activity.VisibleToAll = true
		activity.Launched = true
		activity.StartedAt = &now
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch activity: %w", err)
	}

	log.Info().Str("activity_id", id.String()).Str("status", string(activity.Status)).Msg("activity launched")
	return activity, nil
}

// Complete marks an active activity completed. The caller is responsible for
// also clearing the owning session's current-activity pointer; the two writes
// are independent and can observably diverge under concurrent admin actions.
func (a *App) Complete(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	now := a.clock.Now()
	activity, err := a.repo.UpdateActivity(ctx, id, func(activity *models.Activity) {
		if activity.Status == models.ActivityStatusCompleted {
			return
		}
		activity.Status = models.ActivityStatusCompleted
		activity.CompletedAt = &now
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete activity: %w", err)
	}

	log.Info().Str("activity_id", id.String()).Msg("activity completed")
	return activity, nil
}

// Delete removes an activity outright. No tombstone is kept.
func (a *App) Delete(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.DeleteActivity(ctx, id); err != nil {
		return err
	}
	log.Info().Str("activity_id", id.String()).Msg("activity deleted")
	return nil
}

// Get returns one activity, or docstore.ErrNotFound.
func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	return a.repo.GetActivity(ctx, id)
}

// GetWithRetry looks an activity up with a bounded settle loop. A freshly
// navigated client can hold a session pointer to an activity whose own
// snapshot has not arrived yet; a missing target is "not ready" for a few
// attempts before it becomes not-found and the caller falls back to a
// redirect.
func (a *App) GetWithRetry(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	var lastErr error
	for attempt := 0; attempt < lookupRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-a.clock.After(lookupSettleDelay):
			}
		}

		activity, err := a.repo.GetActivity(ctx, id)
		if err == nil {
			return activity, nil
		}
		lastErr = err
		if !errors.Is(err, docstore.ErrNotFound) {
			log.Error().Err(err).Str("activity_id", id.String()).Int("attempt", attempt+1).Msg("activity lookup failed")
		}
	}
	return nil, fmt.Errorf("activity not found after %d attempts: %w", lookupRetries, lastErr)
}

// List returns the activities the viewer may see, newest first.
func (a *App) List(ctx context.Context, sessionID uuid.UUID, viewerIsAdmin bool) ([]models.Activity, error) {
	all, err := a.repo.ListActivities(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return visibility.FilterActivities(viewerIsAdmin, all), nil
}

// Subscribe streams policy-filtered activity snapshots, newest first.
func (a *App) Subscribe(ctx context.Context, sessionID uuid.UUID, viewerIsAdmin bool, fn func([]models.Activity)) (func(), error) {
	return a.repo.WatchActivities(ctx, sessionID, func(all []models.Activity) {
		fn(visibility.FilterActivities(viewerIsAdmin, all))
	})
}
