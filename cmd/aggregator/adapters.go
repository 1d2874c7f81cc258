package main

import (
	"log/slog"
	"net/http"

	"github.com/couchcryptid/track-aggregator/internal/adapter/breaker"
	"github.com/couchcryptid/track-aggregator/internal/adapter/generated"
	"github.com/couchcryptid/track-aggregator/internal/adapter/marine"
	"github.com/couchcryptid/track-aggregator/internal/adapter/opensky"
	"github.com/couchcryptid/track-aggregator/internal/adapter/practice"
	"github.com/couchcryptid/track-aggregator/internal/aggregator"
	"github.com/couchcryptid/track-aggregator/internal/config"
	"github.com/couchcryptid/track-aggregator/internal/credentials"
	"github.com/couchcryptid/track-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
)

const openSkyPool = "opensky"

// buildAdapters registers one breaker-guarded adapter per configured source,
// in the order their tracks appear in a snapshot.
func buildAdapters(cfg *config.Config, httpClient *http.Client, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) ([]aggregator.Adapter, error) {
	settings := breaker.Settings{
		FailureThreshold: breaker.DefaultFailureThreshold,
		OpenTimeout:      cfg.BreakerTimeout,
	}
	guard := func(a breaker.Adapter) aggregator.Adapter {
		return breaker.Wrap(a, settings, logger, metrics)
	}

	var adapters []aggregator.Adapter

	if cfg.RadarEnabled() {
		pool := make([]credentials.Credential, 0, len(cfg.OpenSkyCredentials))
		for _, c := range cfg.OpenSkyCredentials {
			pool = append(pool, credentials.Credential{ID: c.ID, Secret: c.Secret, QuotaMax: cfg.OpenSkyQuotaMax})
		}
		fetcher := credentials.NewOAuth2Fetcher(cfg.OpenSkyTokenURL, httpClient, clock)
		broker, err := credentials.NewBroker(map[string][]credentials.Credential{openSkyPool: pool}, fetcher, clock, logger, metrics)
		if err != nil {
			return nil, err
		}
		bbox := opensky.BoundingBox{
			LatMin: cfg.BoundingBox.LatMin,
			LatMax: cfg.BoundingBox.LatMax,
			LonMin: cfg.BoundingBox.LonMin,
			LonMax: cfg.BoundingBox.LonMax,
		}
		adapters = append(adapters, guard(opensky.NewClient(cfg.OpenSkyAPIURL, openSkyPool, bbox, broker, httpClient, logger)))
		logger.Info("radar source enabled", "credentials", len(pool))
	}
	if cfg.MarineAPIURL != "" {
		adapters = append(adapters, guard(marine.NewClient(cfg.MarineAPIURL, cfg.MarineToken, httpClient, logger)))
		logger.Info("marine source enabled")
	}
	if cfg.PracticeAPIURL != "" {
		adapters = append(adapters, guard(practice.NewClient(cfg.PracticeAPIURL, httpClient, logger)))
		logger.Info("practice source enabled")
	}
	if cfg.GeneratedAPIURL != "" {
		adapters = append(adapters, guard(generated.NewClient(cfg.GeneratedAPIURL, httpClient, logger)))
		logger.Info("generated source enabled")
	}
	return adapters, nil
}
