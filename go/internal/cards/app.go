package cards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/models"
	"github.com/retrolive/retrolive/go/internal/visibility"
)

// Precondition failures surfaced by AddCard. The two session states get
// distinct errors so the presentation layer can word them differently.
var (
	ErrSessionPaused = errors.New("cards cannot be added while the session is paused")
	ErrSessionClosed = errors.New("cards cannot be added to a closed session")
)

const (
	createRetries    = 2
	createRetryDelay = time.Second
)

// SessionReader is what the card app needs from the session layer.
type SessionReader interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// App handles card business logic: creation with bounded retry, admin
// visibility toggles, and policy-filtered reads.
type App struct {
	repo     *Repository
	sessions SessionReader
	clock    clockwork.Clock
}

func NewApp(repo *Repository, sessions SessionReader, clock clockwork.Clock) *App {
	return &App{repo: repo, sessions: sessions, clock: clock}
}

// AddCard creates a card after validating input and the session's state.
// Transient store failures are retried twice with a fixed delay before the
// error surfaces; the caller rolls back any optimistic local insert then.
func (a *App) AddCard(ctx context.Context, req AddCardRequest) (uuid.UUID, error) {
	if req.SessionID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("session_id is required")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return uuid.Nil, fmt.Errorf("card text must not be empty")
	}
	if req.Author == "" {
		return uuid.Nil, fmt.Errorf("author is required")
	}

	session, err := a.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load session: %w", err)
	}
	switch session.Status {
	case models.SessionStatusPaused:
		return uuid.Nil, ErrSessionPaused
	case models.SessionStatusClosed:
		return uuid.Nil, ErrSessionClosed
	}

	isVisible := req.IsVisible
	card := &models.Card{
		ID:        uuid.New(),
		SessionID: req.SessionID,
		Text:      text,
		Author:    req.Author,
		Column:    req.Column,
		IsVisible: &isVisible,
		CreatedAt: a.clock.Now(),
	}

	var lastErr error
	for attempt := 0; attempt <= createRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return uuid.Nil, ctx.Err()
			case <-a.clock.After(createRetryDelay):
			}
		}

		if err := a.repo.CreateCard(ctx, card); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("session_id", req.SessionID.String()).
				Msg("failed to create card, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("card_id", card.ID.String()).
				Msg("card create succeeded after retry")
		}
		return card.ID, nil
	}

	return uuid.Nil, fmt.Errorf("card create failed after %d attempts: %w", createRetries+1, lastErr)
}

// SetCardVisibility toggles one card. Admin-only by contract; enforcement
// happens in the calling layer.
func (a *App) SetCardVisibility(ctx context.Context, cardID uuid.UUID, visible bool) error {
	_, err := a.repo.UpdateCard(ctx, cardID, func(card *models.Card) {
		card.IsVisible = &visible
	})
	if err != nil {
		return fmt.Errorf("failed to set card visibility: %w", err)
	}
	return nil
}

// SetColumnVisibility fans the toggle out over every card in the column.
// Individual failures are logged and skipped; the first error is reported
// after the sweep finishes so one bad card cannot stop the rest.
func (a *App) SetColumnVisibility(ctx context.Context, sessionID uuid.UUID, column models.ColumnType, visible bool) error {
	existing, err := a.repo.ListCards(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list cards for column toggle: %w", err)
	}

	var firstErr error
	updated := 0
	for _, card := range existing {
		if card.Column != column {
			continue
		}
		if err := a.SetCardVisibility(ctx, card.ID, visible); err != nil {
			log.Error().Err(err).Str("card_id", card.ID.String()).Msg("column visibility toggle failed for card")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		updated++
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("column", string(column)).
		Bool("visible", visible).
		Int("updated", updated).
		Msg("column visibility toggled")
	return firstErr
}

// SetAllCardsVisibility fans the toggle out over the whole session.
func (a *App) SetAllCardsVisibility(ctx context.Context, sessionID uuid.UUID, visible bool) error {
	existing, err := a.repo.ListCards(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list cards for session toggle: %w", err)
	}

	var firstErr error
	for _, card := range existing {
		if err := a.SetCardVisibility(ctx, card.ID, visible); err != nil {
			log.Error().Err(err).Str("card_id", card.ID.String()).Msg("session visibility toggle failed for card")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ListCards returns the cards the viewer may see, in creation order.
func (a *App) ListCards(ctx context.Context, sessionID uuid.UUID, viewerIsAdmin bool) ([]models.Card, error) {
	all, err := a.repo.ListCards(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return visibility.FilterCards(viewerIsAdmin, all), nil
}

// SubscribeCards streams policy-filtered card snapshots. The subscription
// never clears previously delivered data on a transient read error; it logs
// and waits for the next snapshot.
func (a *App) SubscribeCards(ctx context.Context, sessionID uuid.UUID, viewerIsAdmin bool, fn func([]models.Card)) (func(), error) {
	return a.repo.WatchCards(ctx, sessionID, func(all []models.Card) {
		fn(visibility.FilterCards(viewerIsAdmin, all))
	})
}
