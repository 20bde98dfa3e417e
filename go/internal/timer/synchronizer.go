package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/models"
)

const tickInterval = time.Second

// SessionPauser is what the synchronizer needs from the session layer to
// cascade a pause when the timer expires.
type SessionPauser interface {
	SetStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus) error
}

// SynchronizerConfig tunes one client's timer loop.
type SynchronizerConfig struct {
	// IsAdmin marks this client as authority-holding: on observed
	// completion it additionally pauses the session and, after GraceDelay,
	// deletes the timer document. Multiple admin clients racing on these
	// effects is tolerated; both effects are idempotent.
	IsAdmin    bool
	GraceDelay time.Duration

	// OnTick receives the locally derived remaining duration once per tick
	// for rendering. Optional.
	OnTick func(remaining time.Duration)
}

// DefaultSynchronizerConfig returns the default loop configuration.
func DefaultSynchronizerConfig(isAdmin bool) SynchronizerConfig {
	return SynchronizerConfig{
		IsAdmin:    isAdmin,
		GraceDelay: 3 * time.Second,
	}
}

// Synchronizer keeps one client's view of the shared countdown honest. Every
// subscriber runs a local one-second tick against the last-received end time;
// whichever subscriber first notices expiry while the document still claims
// to be running writes the completion. First writer wins and duplicates are
// harmless.
type Synchronizer struct {
	app      *App
	sessions SessionPauser
	clock    clockwork.Clock
	cfg      SynchronizerConfig

	mu      sync.Mutex
	latest  *models.TimerState
	handled bool
}

func NewSynchronizer(app *App, sessions SessionPauser, clock clockwork.Clock, cfg SynchronizerConfig) *Synchronizer {
	return &Synchronizer{app: app, sessions: sessions, clock: clock, cfg: cfg}
}

// Run watches the session's timer document and ticks until the context is
// cancelled.
func (s *Synchronizer) Run(ctx context.Context, sessionID uuid.UUID) error {
	changed := make(chan struct{}, 1)
	unsubscribe, err := s.app.Subscribe(ctx, sessionID, func(state *models.TimerState) {
		s.mu.Lock()
		s.latest = state
		if state == nil || (!state.IsComplete && state.IsRunning) {
			// Deleted or (re)started: a future completion is new work.
			s.handled = false
		}
		s.mu.Unlock()

		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	ticker := s.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.tick(ctx, sessionID)
		case <-changed:
			s.observe(ctx, sessionID)
		}
	}
}

// tick derives remaining time locally and writes completion if this client
// is the first to notice expiry.
func (s *Synchronizer) tick(ctx context.Context, sessionID uuid.UUID) {
	s.mu.Lock()
	state := s.latest
	s.mu.Unlock()
	if state == nil {
		return
	}

	now := s.clock.Now()
	remaining := state.Remaining(now)
	if s.cfg.OnTick != nil {
		s.cfg.OnTick(remaining)
	}

	if state.IsRunning && !state.IsComplete && remaining <= 0 {
		if _, err := s.app.Complete(ctx, sessionID); err != nil {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to write timer completion")
		}
	}
}

// observe reacts to a fresh snapshot. An admin client drives the cascading
// session pause exactly once per completion, then deletes the timer document
// after the grace delay.
func (s *Synchronizer) observe(ctx context.Context, sessionID uuid.UUID) {
	s.mu.Lock()
	state := s.latest
	alreadyHandled := s.handled
	if state != nil && state.IsComplete && !alreadyHandled {
		s.handled = true
	}
	s.mu.Unlock()

	if state == nil || !state.IsComplete || alreadyHandled || !s.cfg.IsAdmin {
		return
	}

	if err := s.sessions.SetStatus(ctx, sessionID, models.SessionStatusPaused); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to pause session on timer expiry")
	}

	grace := s.clock.NewTimer(s.cfg.GraceDelay)
	go func() {
		defer grace.Stop()
		select {
		case <-ctx.Done():
			return
		case <-grace.Chan():
		}
		if err := s.app.Delete(ctx, sessionID); err != nil {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to delete completed timer")
			return
		}
		log.Info().Str("session_id", sessionID.String()).Msg("completed timer cleaned up")
	}()
}
