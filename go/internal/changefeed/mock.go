package changefeed

import (
	"context"

	"github.com/rs/zerolog/log"
)

// MockPublisher logs events instead of publishing, for development and tests.
type MockPublisher struct{}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(ctx context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("session_id", event.SessionID.String()).
		Msg("publishing event")
	return nil
}

func (p *MockPublisher) Close() error {
	return nil
}
