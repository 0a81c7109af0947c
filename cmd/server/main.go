// Package main is the entry point for the token economy service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"token-economy/internal/config"
	"token-economy/internal/game"
	"token-economy/internal/handler"
	"token-economy/internal/jobs"
	"token-economy/internal/pkg/db"
	"token-economy/internal/pkg/lock"
	"token-economy/internal/pkg/telemetry"
	"token-economy/internal/repository"
	"token-economy/internal/server"
	"token-economy/internal/service"
	"token-economy/internal/shop"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	store := repository.NewStore(dbPool.Pool)
	userLock := lock.NewUserLock()
	access := service.NewAccess(store.Profiles, cfg.Auth.OwnerIDs)
	clock := service.SystemClock

	// Initialize mini-game registry
	games, err := game.NewRegistryFromConfig(cfg.MiniGames)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register mini-games")
	}
	log.Info().
		Int("game_count", games.Count()).
		Strs("games", games.Types()).
		Msg("Mini-games registered")

	categories := make([]string, 0, len(shop.Categories))
	for _, c := range shop.GetAllCategories() {
		categories = append(categories, c.Name)
	}
	log.Info().Strs("categories", categories).Msg("Shop categories loaded")

	// Initialize services
	econ := cfg.Economy
	earningService := service.NewEarningService(store, userLock, access, games, econ, clock)
	shopService := service.NewShopService(store, userLock, econ.LockTimeout, clock)
	transferService := service.NewTransferService(store, userLock, econ.TransferTaxBasisPoints, econ.LockTimeout, clock)
	seasonalService := service.NewSeasonalService(store, userLock, econ.LockTimeout, clock)
	walletService := service.NewWalletService(store, econ.DailyEarnCap, econ.WalletRecentTx, clock)
	rankingService := service.NewRankingService(store, access, econ.LeaderboardSize, econ.TopEarnersWindow, econ.StatsRecentTx, clock)

	dispatcher := handler.NewDispatcher(handler.Services{
		Earning:  earningService,
		Shop:     shopService,
		Transfer: transferService,
		Seasonal: seasonalService,
		Wallet:   walletService,
		Ranking:  rankingService,
	})

	actions := make([]string, 0, len(dispatcher.Actions()))
	for _, a := range dispatcher.Actions() {
		actions = append(actions, string(a))
	}
	log.Info().Strs("actions", actions).Msg("Actions registered")

	// Initialize background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(cfg.Jobs, seasonalService, store.DailyCaps, store.Audit, clock)
		if err := scheduler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job scheduler")
		}
	}

	// Initialize HTTP server
	srv, err := server.New(&server.Dependencies{
		Config:     cfg.Server,
		Auth:       server.NewAuthenticator(cfg.Auth),
		Dispatcher: dispatcher,
		Health:     dbPool,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not drain cleanly")
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	earningService.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush traces")
	}
	log.Info().Msg("Server stopped gracefully")
}

// setupLogger applies the configured level and output format.
func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
