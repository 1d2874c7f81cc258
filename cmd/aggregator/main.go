package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/track-aggregator/internal/adapter/cache"
	"github.com/couchcryptid/track-aggregator/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/track-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/track-aggregator/internal/aggregator"
	"github.com/couchcryptid/track-aggregator/internal/config"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/observability"
	"github.com/couchcryptid/track-aggregator/internal/snapshot"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}

	adapters, err := buildAdapters(cfg, httpClient, clock, logger, metrics)
	if err != nil {
		logger.Error("failed to build source adapters", "error", err)
		os.Exit(1)
	}

	normalizer := domain.NewNormalizer(cfg.GridPrecision, cfg.GridDisplayPrecision)
	normalizer.OnSkip = func(source domain.SourceType, reason string) {
		metrics.RecordsSkipped.WithLabelValues(string(source), reason).Inc()
	}

	store := snapshot.NewStore()

	var sinks []aggregator.Sink
	var cacheStore *cache.Store
	if cfg.CachePath != "" {
		cacheStore, err = cache.Open(cfg.CachePath, logger)
		if err != nil {
			logger.Error("failed to open cache", "error", err)
			os.Exit(1)
		}
		restore(store, cacheStore, logger)
		sinks = append(sinks, cacheStore)
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaSnapshotTopic != "" {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		logger.Info("kafka snapshot fan-out enabled", "topic", cfg.KafkaSnapshotTopic)
	}

	agg, err := aggregator.New(adapters, normalizer, store, aggregator.Options{
		FetchTimeout: cfg.FetchTimeout,
		Sinks:        sinks,
		Clock:        clock,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		logger.Error("failed to create aggregator", "error", err)
		os.Exit(1)
	}

	sched, err := aggregator.NewScheduler(agg, cfg.ScheduleInterval, clock, logger, metrics)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, store, logger)
	if cfg.MTLSEnabled {
		tlsCfg, err := httpadapter.NewMTLSConfig(cfg.MTLSCACert, cfg.MTLSServerCert, cfg.MTLSServerKey)
		if err != nil {
			logger.Error("failed to load mTLS material", "error", err)
			os.Exit(1)
		}
		srv.UseTLS(tlsCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the aggregation schedule.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("aggregation cycle still running at shutdown deadline")
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if cacheStore != nil {
		if err := cacheStore.Close(); err != nil {
			logger.Error("cache close error", "error", err)
		}
	}

	httpClient.CloseIdleConnections()

	logger.Info("shutdown complete")
}

// restore seeds the store from the last cached snapshot so the read API has
// data before the first cycle completes.
func restore(store *snapshot.Store, c *cache.Store, logger *slog.Logger) {
	snap, err := c.Load()
	switch {
	case errors.Is(err, cache.ErrEmpty):
		logger.Info("cache empty, starting without snapshot")
	case err != nil:
		logger.Warn("failed to load cached snapshot", "error", err)
	default:
		if store.Restore(snap) {
			logger.Info("restored cached snapshot", "generated_at", snap.GeneratedAt, "tracks", len(snap.Tracks))
		}
	}
}
