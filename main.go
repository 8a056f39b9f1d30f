package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meetscribe/backend/internal/ai"
	"github.com/meetscribe/backend/internal/api"
	"github.com/meetscribe/backend/internal/config"
	"github.com/meetscribe/backend/internal/db"
	"github.com/meetscribe/backend/internal/idempotency"
	"github.com/meetscribe/backend/internal/logger"
	"github.com/meetscribe/backend/internal/pipeline"
	"github.com/meetscribe/backend/internal/storage"
)

func main() {
	log := logger.Default()

	cfg := config.MustLoad()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer database.Close()

	blobs, err := storage.NewBlobStore(cfg.UploadPath)
	if err != nil {
		return fmt.Errorf("initialize blob store: %w", err)
	}

	cache, err := idempotency.Open(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("initialize idempotency cache: %w", err)
	}
	defer cache.Close()

	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY not set, transcription and summarization will fail")
	}
	transcriber := ai.NewWhisperClient(cfg.OpenAIAPIKey, cfg.WhisperModel, cfg.TranscribeTimeout, log)
	summarizer := ai.NewChatClient(cfg.OpenAIAPIKey, cfg.SummaryModel, cfg.SummarizeTimeout, log)

	pl := pipeline.New(database, blobs, transcriber, summarizer, cache, log)

	router := api.NewRouter(database, pl, cfg, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Minute, // uploads can be large
		WriteTimeout: 5 * time.Minute, // transcription runs within the request
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server started", "address", srv.Addr, "uploads", cfg.UploadPath)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("start shutdown", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}
