package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/adapters/httpapi"
	"github.com/careerlab/overseer/internal/app"
	"github.com/careerlab/overseer/internal/attendance"
	"github.com/careerlab/overseer/internal/config"
	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	m := metrics.New()

	var ledger core.Ledger
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("ping database")
		}
		ledger = attendance.NewPostgresLedger(db)
		log.Info().Msg("attendance ledger: postgres")
	} else {
		ledger = attendance.NewMemoryLedger()
		log.Warn().Msg("attendance ledger: in-memory, rows lost on restart")
	}

	registry := app.NewRegistry(cfg.CloseOldOnReregister, m)
	relay := app.NewRelay(registry, m)
	sync := attendance.NewSynchronizer(ledger, m)

	// Presence truth drives everything else: the ledger mirror and the
	// status pushes to watchers both hang off registry events.
	registry.Subscribe(sync.HandlePresence)
	registry.Subscribe(relay.NotifyPresence)
	go sync.Run(ctx)

	r := httpapi.SetupRouter(ctx, cfg, &httpapi.Deps{
		Registry: registry,
		Relay:    relay,
		Ledger:   ledger,
		Metrics:  m,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Overseer server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
