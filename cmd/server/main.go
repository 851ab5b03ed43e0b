package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
	"github.com/openfolio/portfolio-analyzer/internal/config"
	"github.com/openfolio/portfolio-analyzer/internal/database"
	"github.com/openfolio/portfolio-analyzer/internal/history"
	"github.com/openfolio/portfolio-analyzer/internal/scheduler"
	"github.com/openfolio/portfolio-analyzer/internal/server"
	"github.com/openfolio/portfolio-analyzer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Investment Portfolio Analyzer")

	db, err := database.New(database.Config{
		Path: cfg.DataDir + "/portfolio.db",
		Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Market data clients; the store tries each in order until one delivers
	yahooClient := yahoo.NewClient(log)
	nativeClient := yahoo.NewNativeClient(log)

	store, err := history.NewStore(history.DefaultMethods(nativeClient, yahooClient), history.Options{
		CacheDir: cfg.CacheDir,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price history store")
	}

	sched := scheduler.New(log)
	if err := sched.AddJob("@every 15m", scheduler.NewCachePruneJob(store, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache_prune job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:          log,
		DB:           db,
		Histories:    store,
		Sectors:      yahooClient,
		MarketSymbol: cfg.MarketIndexSymbol,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
