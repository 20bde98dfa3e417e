package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/changefeed"
)

// ConsumerConfig holds configuration for the NATS event consumer.
type ConsumerConfig struct {
	URL           string
	SubjectFilter string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns default NATS consumer configuration.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectFilter: "retro.events.>",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer subscribes to the session event feed on NATS and broadcasts
// each event to the owning session's WebSocket connections.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            ConsumerConfig
}

// NewEventConsumer connects to NATS and prepares the consumer.
func NewEventConsumer(cm *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		config:            config,
	}, nil
}

// Start subscribes to the event feed and blocks until the context is
// cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("subject", ec.config.SubjectFilter).
		Msg("starting event consumer")

	messageCh := make(chan *nats.Msg, 100)
	sub, err := ec.nc.ChanSubscribe(ec.config.SubjectFilter, messageCh)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", ec.config.SubjectFilter, err)
	}
	ec.sub = sub
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.processMessage(msg); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject).
					Msg("failed to process message")
			}
		}
	}
}

func (ec *EventConsumer) processMessage(msg *nats.Msg) error {
	event, err := changefeed.UnmarshalWire(msg.Data)
	if err != nil {
		return err
	}

	if !KnownEventType(EventType(event.EventType)) {
		log.Warn().
			Str("event_type", event.EventType).
			Str("subject", msg.Subject).
			Msg("dropping unknown event type")
		return nil
	}

	ec.connectionManager.BroadcastToSession(event.SessionID, FromFeed(event))

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("session_id", event.SessionID.String()).
		Str("event_type", event.EventType).
		Msg("event broadcasted to WebSocket clients")
	return nil
}

// Stop closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
