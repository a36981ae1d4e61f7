package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autoqa-transcripts/internal/dashboard"
	"autoqa-transcripts/internal/logger"
	"autoqa-transcripts/internal/storage"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "autoqa-transcripts-dashboard").Info("starting dashboard")

	storageRoot := envOr("STORAGE_ROOT", "autoqa")
	store, err := storage.NewFSStore(storageRoot)
	if err != nil {
		log.WithError(err).Fatal("failed to open transcript store")
	}
	log.WithField("storage_root", storageRoot).Info("transcript store opened")

	mux := http.NewServeMux()
	dashboard.NewHandler(store).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%s", envOr("PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
