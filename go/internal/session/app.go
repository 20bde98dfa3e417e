package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
)

// CardPurger and ActivityPurger are what the session app needs from the card
// and activity layers to cascade a close.
type CardPurger interface {
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
}

type ActivityPurger interface {
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// TimerPurger removes a session's timer document if one exists.
type TimerPurger interface {
	DeleteTimer(ctx context.Context, sessionID uuid.UUID) error
}

// App owns session lifecycle: creation, the participant roster, status
// transitions, the current-activity pointer, and cascading deletion on close.
type App struct {
	repo       *Repository
	cards      CardPurger
	activities ActivityPurger
	timers     TimerPurger
	clock      clockwork.Clock
}

func NewApp(repo *Repository, cards CardPurger, activities ActivityPurger, timers TimerPurger, clock clockwork.Clock) *App {
	return &App{repo: repo, cards: cards, activities: activities, timers: timers, clock: clock}
}

// Create starts a new session. The creator becomes the admin and the first
// participant, and the session opens immediately.
func (a *App) Create(ctx context.Context, creatorName string) (*models.Session, error) {
	creatorName = strings.TrimSpace(creatorName)
	if creatorName == "" {
		return nil, fmt.Errorf("a display name is required to create a session")
	}

	now := a.clock.Now()
	session := &models.Session{
		ID:        uuid.New(),
		ShareCode: newShareCode(),
		Status:    models.SessionStatusOpen,
		AdminID:   creatorName,
		CreatedBy: creatorName,
		Participants: []models.Participant{{
			ID:          uuid.New(),
			DisplayName: creatorName,
			JoinedAt:    now,
			Presence:    models.PresenceOnline,
		}},
		CardsVisible: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("share_code", session.ShareCode).
		Str("admin", creatorName).
		Msg("session created")
	return session, nil
}

// AddParticipant joins a display name to the session. Names are unique
// case-insensitively: a duplicate collapses to the existing participant and
// its ID is returned rather than an error.
func (a *App) AddParticipant(ctx context.Context, sessionID uuid.UUID, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("a display name is required to join")
	}

	var participantID uuid.UUID
	_, err := a.repo.UpdateSession(ctx, sessionID, func(session *models.Session) {
		if existing := session.FindParticipant(name); existing != nil {
			participantID = existing.ID
			existing.Presence = models.PresenceOnline
			return
		}
		p := models.Participant{
			ID:          uuid.New(),
			DisplayName: name,
			JoinedAt:    a.clock.Now(),
			Presence:    models.PresenceOnline,
		}
		session.Participants = append(session.Participants, p)
		session.UpdatedAt = a.clock.Now()
		participantID = p.ID
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to add participant: %w", err)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("participant", name).
		Msg("participant joined")
	return participantID, nil
}

// SetPresence updates a participant's presence state.
func (a *App) SetPresence(ctx context.Context, sessionID, participantID uuid.UUID, presence models.PresenceState) error {
	_, err := a.repo.UpdateSession(ctx, sessionID, func(session *models.Session) {
		for i := range session.Participants {
			if session.Participants[i].ID == participantID {
				session.Participants[i].Presence = presence
				return
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

// GetSession returns one session, or docstore.ErrNotFound.
func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return a.repo.GetSession(ctx, id)
}

// SetStatus moves a session between open and paused. Closing goes through
// Close, which cascades.
func (a *App) SetStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus) error {
	if status != models.SessionStatusOpen && status != models.SessionStatusPaused {
		return fmt.Errorf("invalid session status transition to %q", status)
	}
	_, err := a.repo.UpdateSession(ctx, sessionID, func(session *models.Session) {
		session.Status = status
		session.UpdatedAt = a.clock.Now()
	})
	if err != nil {
		return fmt.Errorf("failed to set session status: %w", err)
	}

	log.Info().Str("session_id", sessionID.String()).Str("status", string(status)).Msg("session status changed")
	return nil
}

// Close ends a session for good: mark it closed, delete every owned card and
// activity plus the timer, then delete the session document itself. The steps
// are independent best-effort deletes, each idempotent, so re-running close
// after a partial failure converges on the same end state. Closing an absent
// session is a no-op.
func (a *App) Close(ctx context.Context, sessionID uuid.UUID) error {
	_, err := a.repo.UpdateSession(ctx, sessionID, func(session *models.Session) {
		session.Status = models.SessionStatusClosed
		session.CurrentActivityID = nil
		session.UpdatedAt = a.clock.Now()
	})
	if errors.Is(err, docstore.ErrNotFound) {
		log.Info().Str("session_id", sessionID.String()).Msg("close of absent session is a no-op")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark session closed: %w", err)
	}

	cardCount, err := a.cards.DeleteBySession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("card cascade failed; close continues")
	}
	activityCount, err := a.activities.DeleteBySession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("activity cascade failed; close continues")
	}
	if err := a.timers.DeleteTimer(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("timer cascade failed; close continues")
	}

	if err := a.repo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session document: %w", err)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Int("cards_deleted", cardCount).
		Int("activities_deleted", activityCount).
		Msg("session closed and cascaded")
	return nil
}

// SetCurrentActivity points the whole session at an activity (or clears the
// pointer with nil). The write is read back and verified; one retry defends
// against eventually-consistent read-after-write on the underlying store, not
// against genuine conflicting writers.
func (a *App) SetCurrentActivity(ctx context.Context, sessionID uuid.UUID, activityID *uuid.UUID) error {
	for attempt := 0; attempt < 2; attempt++ {
		_, err := a.repo.UpdateSession(ctx, sessionID, func(session *models.Session) {
			session.CurrentActivityID = activityID
			session.UpdatedAt = a.clock.Now()
		})
		if err != nil {
			return fmt.Errorf("failed to set current activity: %w", err)
		}

		readback, err := a.repo.GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to verify current activity write: %w", err)
		}
		if pointerEqual(readback.CurrentActivityID, activityID) {
			return nil
		}

		log.Warn().
			Str("session_id", sessionID.String()).
			Int("attempt", attempt+1).
			Msg("current activity readback mismatch, retrying")
	}
	return fmt.Errorf("current activity write did not verify after retry")
}

// SetCardsVisibility changes the default applied to future cards only.
// Existing card documents are untouched; the bulk card toggle is a separate
// operation.
func (a *App) SetCardsVisibility(ctx context.Context, sessionID uuid.UUID, visible bool) error {
	_, err := a.repo.UpdateSession(ctx, sessionID, func(session *models.Session) {
		session.CardsVisible = visible
		session.UpdatedAt = a.clock.Now()
	})
	if err != nil {
		return fmt.Errorf("failed to set cards visibility default: %w", err)
	}
	return nil
}

// Subscribe streams the session's own change feed. A nil session signals
// deletion (close observed remotely).
func (a *App) Subscribe(ctx context.Context, sessionID uuid.UUID, fn func(*models.Session)) (func(), error) {
	return a.repo.WatchSession(ctx, sessionID, fn)
}

func pointerEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
