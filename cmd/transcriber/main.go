package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"autoqa-transcripts/internal/config"
	"autoqa-transcripts/internal/formatter"
	"autoqa-transcripts/internal/logger"
	"autoqa-transcripts/internal/metadata"
	"autoqa-transcripts/internal/metrics"
	"autoqa-transcripts/internal/storage"
	"autoqa-transcripts/internal/transcription"
	"autoqa-transcripts/internal/workflow"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "autoqa-transcripts").Info("starting transcription run")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	store, err := storage.NewFSStore(cfg.Storage.Root)
	if err != nil {
		log.WithError(err).Fatal("failed to open transcript store")
	}

	source, err := buildSource(cfg, store)
	if err != nil {
		log.WithError(err).Fatal("failed to build metadata source")
	}

	client, err := transcription.NewClient(transcription.ClientConfig{
		BaseURL:     cfg.Transcription.BaseURL,
		BearerToken: cfg.Transcription.BearerToken,
		Timeout:     cfg.Transcription.RequestTimeoutDuration(),
		MinSpeakers: cfg.Transcription.MinSpeakers,
		MaxSpeakers: cfg.Transcription.MaxSpeakers,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build transcription client")
	}

	poller := transcription.NewPoller(client, transcription.PollOptions{
		Delay:            cfg.Transcription.PollDelay(),
		MaxIterations:    cfg.Transcription.MaxPollIterations,
		MaxUnknownPhases: cfg.Transcription.MaxUnknownPhases,
	})

	orchestrator := workflow.NewOrchestrator(
		client,
		poller,
		formatter.New(cfg.Formatter.RemoteURL, cfg.Transcription.RequestTimeoutDuration()),
		storage.NewTranscriptSink(store, cfg.Storage.SaveRawJSON),
		metrics.New(nil),
		workflow.Options{
			AudioBaseURL:       cfg.Source.AudioBaseURL,
			SASToken:           cfg.Source.SASToken,
			SubmissionsPerHour: cfg.Transcription.SubmissionsPerHour,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := source.Items(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to list work items")
	}
	if len(items) == 0 {
		log.Warn("no audio files found to process")
		return
	}

	summary := orchestrator.Run(ctx, items)
	if summary.Failed > 0 && summary.Succeeded == 0 {
		os.Exit(1)
	}
}

func buildSource(cfg *config.Config, store storage.Store) (metadata.Source, error) {
	if cfg.Source.Kind == "excel" {
		return metadata.NewExcelSource(cfg.Source.ExcelPath, cfg.Source.AudioBaseURL, cfg.Source.SASToken), nil
	}
	return metadata.NewStoreSource(store, cfg.Source.Prefix, cfg.Source.AudioBaseURL, cfg.Source.SASToken, cfg.Source.MaxFiles), nil
}
