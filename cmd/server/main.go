// Command server runs the notes backend HTTP API.
//
// Startup order: load .env (best effort), parse configuration, configure
// logging, open and migrate the database, set up OpenTelemetry (optional),
// build the Gin engine with all routes, then serve until SIGINT/SIGTERM and
// shut down gracefully.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jdekker/go-notes-backend/internal/ai"
	"github.com/jdekker/go-notes-backend/internal/config"
	httpapi "github.com/jdekker/go-notes-backend/internal/http"
	"github.com/jdekker/go-notes-backend/internal/observability"
	"github.com/jdekker/go-notes-backend/internal/repo"
	"github.com/jdekker/go-notes-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// @title           Notes Backend API
// @version         1.0
// @description     Token-authenticated ingestion and summarization API for meeting transcripts.
//
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	// Local development convenience; real deployments set env directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled {
		shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
		if err != nil {
			log.Fatal().Err(err).Msg("setup otel")
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("otel shutdown")
			}
		}()
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("enable db tracing")
		}
	}

	client := ai.NewGatewayClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, client, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}
