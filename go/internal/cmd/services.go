package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/activity"
	"github.com/retrolive/retrolive/go/internal/cards"
	"github.com/retrolive/retrolive/go/internal/changefeed"
	"github.com/retrolive/retrolive/go/internal/docstore"
	docpg "github.com/retrolive/retrolive/go/internal/docstore/postgres"
	"github.com/retrolive/retrolive/go/internal/gateway"
	"github.com/retrolive/retrolive/go/internal/icebreaker"
	"github.com/retrolive/retrolive/go/internal/session"
	"github.com/retrolive/retrolive/go/internal/timer"
)

// Services holds every wired layer of the process.
type Services struct {
	Store    docstore.Store
	Listener *docpg.Listener

	Sessions    *session.App
	Cards       *cards.App
	Activities  *activity.App
	IceBreakers *icebreaker.App
	Timers      *timer.App

	Feed    changefeed.Publisher
	Gateway *gateway.Service
	API     *gateway.APIHandler
}

// setupServices wires the dependency chain:
// store -> repository layer -> app layer -> gateway.
func setupServices(ctx context.Context, cfg Config, database *sql.DB) (*Services, error) {
	store, listener, err := setupStore(ctx, cfg, database)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()

	cardRepo := cards.NewRepository(store)
	activityRepo := activity.NewRepository(store)
	sessionRepo := session.NewRepository(store)
	timerRepo := timer.NewRepository(store)

	sessionApp := session.NewApp(sessionRepo, cardRepo, activityRepo, timerRepo, clock)
	cardApp := cards.NewApp(cardRepo, sessionApp, clock)
	activityApp := activity.NewApp(activityRepo, clock)
	timerApp := timer.NewApp(timerRepo)

	bank, err := setupQuestionBank(cfg)
	if err != nil {
		return nil, err
	}
	iceApp := icebreaker.NewApp(icebreaker.NewEngine(bank), activityRepo, sessionApp)

	feed, err := setupFeed(cfg)
	if err != nil {
		return nil, err
	}

	api := gateway.NewAPIHandler(sessionApp, cardApp, activityApp, iceApp, timerApp, feed)

	gwConfig := gateway.DefaultConfig()
	gwConfig.ConsumerConfig.URL = cfg.NATSURL
	var gw *gateway.Service
	if cfg.NATSEnabled {
		gw, err = gateway.NewService(gwConfig, api)
		if err != nil {
			return nil, fmt.Errorf("failed to create gateway: %w", err)
		}
	}

	return &Services{
		Store:       store,
		Listener:    listener,
		Sessions:    sessionApp,
		Cards:       cardApp,
		Activities:  activityApp,
		IceBreakers: iceApp,
		Timers:      timerApp,
		Feed:        feed,
		Gateway:     gw,
		API:         api,
	}, nil
}

func setupStore(ctx context.Context, cfg Config, database *sql.DB) (docstore.Store, *docpg.Listener, error) {
	switch cfg.StoreBackend {
	case "postgres":
		store, err := docpg.NewStore(ctx, database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		listener, err := docpg.NewListener(store, docpg.DefaultListenerConfig(cfg.Database.DSN()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create document listener: %w", err)
		}
		return store, listener, nil
	case "memory":
		log.Info().Msg("using in-memory document store")
		return docstore.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func setupQuestionBank(cfg Config) (*icebreaker.QuestionBank, error) {
	if cfg.QuestionBankPath == "" {
		return icebreaker.DefaultQuestionBank(), nil
	}
	bank, err := icebreaker.LoadQuestionBank(cfg.QuestionBankPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load question bank: %w", err)
	}
	log.Info().Str("path", cfg.QuestionBankPath).Int("questions", bank.Len()).Msg("question bank loaded")
	return bank, nil
}

func setupFeed(cfg Config) (changefeed.Publisher, error) {
	if !cfg.NATSEnabled {
		return changefeed.NewMockPublisher(), nil
	}
	natsCfg := changefeed.DefaultNATSConfig()
	natsCfg.URL = cfg.NATSURL
	feed, err := changefeed.NewNATSPublisher(natsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	return feed, nil
}
