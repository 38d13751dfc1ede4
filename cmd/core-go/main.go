package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prop_survey/core-go/internal/db"
	"prop_survey/core-go/internal/exportworker"
	"prop_survey/core-go/internal/filestore"
	"prop_survey/core-go/internal/httpapi"
	"prop_survey/core-go/internal/metrics"
)

func main() {
	addr := envOr("HTTP_ADDR", ":8081")
	logLevel := envOr("LOG_LEVEL", "info")
	databaseURL := envOr("DATABASE_URL", "")
	fileStoreURL := envOr("FILE_STORE_URL", "file:///var/lib/core-go/files")
	sessionTTL := envDurationOr("SESSION_TTL", 12*time.Hour)

	logger := httpapi.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *db.Pool
	if databaseURL != "" {
		p, err := db.Open(ctx, databaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	store := filestore.New(fileStoreURL)
	m := metrics.New()

	if pool != nil {
		worker := exportworker.New(logger, pool.Queries(), store, exportworker.Options{}, m)
		go worker.Run(ctx)
	}

	h := httpapi.NewHandler(logger, pool, httpapi.Options{
		Store:      store,
		Metrics:    m,
		SessionTTL: sessionTTL,
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("core-go listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
