package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var database *sql.DB
	if cfg.StoreBackend == "postgres" {
		db, err := setupDatabase(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up database")
		}
		defer db.Close()
		database = db
	}

	services, err := setupServices(ctx, cfg, database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}

	if services.Listener != nil {
		go func() {
			if err := services.Listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("document listener stopped")
			}
		}()
	}

	if services.Gateway != nil {
		go func() {
			if err := services.Gateway.Start(ctx); err != nil {
				log.Error().Err(err).Msg("gateway stopped")
			}
		}()
	}

	server := setupServer(cfg, services)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	if services.Feed != nil {
		if err := services.Feed.Close(); err != nil {
			log.Error().Err(err).Msg("feed close failed")
		}
	}

	log.Info().Msg("shutdown complete")
}
