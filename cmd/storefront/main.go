package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/app"
	"github.com/vasiliy-maslov/skincare-storefront/internal/config"
	"github.com/vasiliy-maslov/skincare-storefront/internal/logging"
)

func main() {
	configDir := flag.String("configs", "configs", "directory holding base.yaml and <env>.yaml")
	envName := flag.String("env", envOr("STOREFRONT_ENV", "dev"), "configuration overlay to apply")
	dotenv := flag.String("dotenv", ".env", "optional .env file loaded before the environment")
	flag.Parse()

	cfg, err := config.Load(*configDir, *envName, *dotenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logCloser, err := logging.Setup(cfg.App.Name, cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logCloser.Close()

	log.Info().Str("env", cfg.App.Env).Str("storage", cfg.Storage.Driver).Msg("Starting storefront...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close local storage")
		}
	}()

	if err := application.Hydrate(ctx); err != nil {
		log.Warn().Err(err).Msg("Starting without a restored session")
	}

	server := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      application.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.App.HTTPAddr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Storefront stopped gracefully.")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
