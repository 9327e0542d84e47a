package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/courtsidehq/courtside-feeds/internal/config"
	"github.com/courtsidehq/courtside-feeds/internal/feed"
	"github.com/courtsidehq/courtside-feeds/internal/httpserver"
	"github.com/courtsidehq/courtside-feeds/internal/ingest"
	"github.com/courtsidehq/courtside-feeds/internal/privacy"
	"github.com/courtsidehq/courtside-feeds/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()
	logger.Info("opened database", "path", cfg.DatabasePath)

	// Construct the feed core once and inject it into request handlers;
	// the recorder and preview cache hold process-wide state.
	analytics := feed.NewRecorder()
	engine := feed.NewEngine(repo, analytics, logger)
	previews := feed.NewPreviewCache(repo, repo, privacy.NewFilter(), analytics, logger)
	engine.SetHitRater(previews)

	var rng *rand.Rand
	if cfg.ShuffleSeed != 0 {
		rng = rand.New(rand.NewSource(cfg.ShuffleSeed))
	}
	distributor := feed.NewDistributor(rng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.IngestURL != "" {
		subscriber := ingest.NewSubscriber(cfg.IngestURL, repo, logger)
		go func() {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("ingest subscriber exited with error", "error", err)
			}
		}()
	} else {
		logger.Info("INGEST_URL not set, ingest subscriber disabled")
	}

	server := httpserver.NewServer(cfg, engine, distributor, previews, analytics, repo, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
