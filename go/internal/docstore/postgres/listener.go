package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ListenerConfig holds tuning for the LISTEN/NOTIFY change feed.
type ListenerConfig struct {
	DatabaseURL  string        // Postgres DSN for LISTEN/NOTIFY
	PingInterval time.Duration // keepalive ping cadence
}

// DefaultListenerConfig returns the default change-feed configuration.
func DefaultListenerConfig(databaseURL string) ListenerConfig {
	return ListenerConfig{
		DatabaseURL:  databaseURL,
		PingInterval: 90 * time.Second,
	}
}

// Listener feeds Postgres document notifications into a Store's watcher
// registry. One listener per process is enough regardless of watcher count.
type Listener struct {
	store    *Store
	listener *pq.Listener
	cfg      ListenerConfig
}

// NewListener opens a dedicated LISTEN connection on the documents channel.
func NewListener(store *Store, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(NotifyChannel); err != nil {
		return nil, err
	}

	log.Info().Str("channel", NotifyChannel).Msg("listening for document notifications")

	return &Listener{store: store, listener: l, cfg: cfg}, nil
}

// Start consumes notifications until the context is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("document listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost and is
				// being re-established; watchers re-sync on the next event.
				continue
			}
			l.handleNotification(note.Extra)
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stop closes the LISTEN connection.
func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification decodes a "collection:id:session_id" payload and routes
// it to matching watchers.
func (l *Listener) handleNotification(extra string) {
	parts := strings.SplitN(extra, ":", 3)
	if len(parts) != 3 {
		log.Error().Str("payload", extra).Msg("malformed document notification")
		return
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		log.Error().Err(err).Str("payload", extra).Msg("invalid document ID in notification")
		return
	}
	sessionID, err := uuid.Parse(parts[2])
	if err != nil {
		log.Error().Err(err).Str("payload", extra).Msg("invalid session ID in notification")
		return
	}

	l.store.Dispatch(parts[0], id, sessionID)
}
