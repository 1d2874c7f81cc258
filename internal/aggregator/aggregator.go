// Package aggregator runs fetch cycles across all sources and publishes the
// merged result.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Adapter fetches the raw records of one upstream source.
type Adapter interface {
	Source() domain.SourceType
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// Publisher receives each merged snapshot. It returns the snapshot as
// stored, which may differ in GeneratedAt.
type Publisher interface {
	Publish(snap domain.Snapshot) domain.Snapshot
}

// Sink persists or forwards a published snapshot. Sink failures never fail
// a cycle.
type Sink interface {
	Name() string
	Write(ctx context.Context, snap domain.Snapshot) error
}

// Cycle outcomes recorded in metrics.
const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"
)

// Options configures an Aggregator.
type Options struct {
	FetchTimeout time.Duration
	Sinks        []Sink
	Clock        clockwork.Clock
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

// Aggregator fans a cycle out to every adapter and merges the results in
// registration order.
type Aggregator struct {
	adapters     []Adapter
	normalizer   *domain.Normalizer
	store        Publisher
	sinks        []Sink
	fetchTimeout time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// New creates an Aggregator. Every adapter must report a distinct source.
func New(adapters []Adapter, normalizer *domain.Normalizer, store Publisher, opts Options) (*Aggregator, error) {
	if len(adapters) == 0 {
		return nil, errors.New("at least one adapter is required")
	}
	if opts.FetchTimeout <= 0 {
		return nil, errors.New("fetch timeout must be positive")
	}
	seen := make(map[domain.SourceType]bool, len(adapters))
	for _, a := range adapters {
		if seen[a.Source()] {
			return nil, fmt.Errorf("duplicate adapter for source %q", a.Source())
		}
		seen[a.Source()] = true
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Aggregator{
		adapters:     adapters,
		normalizer:   normalizer,
		store:        store,
		sinks:        opts.Sinks,
		fetchTimeout: opts.FetchTimeout,
		clock:        opts.Clock,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}, nil
}

type fetchResult struct {
	records  []domain.RawRecord
	err      error
	duration time.Duration
}

// RunCycle fetches every source concurrently, each within the fetch
// timeout, normalizes the successes and publishes the merged snapshot. A
// failing source is recorded in SourceStatus and contributes no tracks.
func (a *Aggregator) RunCycle(ctx context.Context) domain.Snapshot {
	start := time.Now()

	results := make([]fetchResult, len(a.adapters))
	var wg sync.WaitGroup
	for i, ad := range a.adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.fetch(ctx, ad)
		}()
	}
	wg.Wait()

	snap := domain.Snapshot{
		Tracks:       []domain.Track{},
		SourceStatus: make(map[domain.SourceType]domain.SourceStatus, len(a.adapters)),
	}
	failed := 0
	for i, ad := range a.adapters {
		source := ad.Source()
		res := results[i]
		a.metrics.FetchDuration.WithLabelValues(string(source)).Observe(res.duration.Seconds())

		if res.err != nil {
			reason := domain.FailureReason(res.err)
			failed++
			snap.SourceStatus[source] = domain.Failed(reason)
			a.metrics.FetchFailures.WithLabelValues(string(source), reason).Inc()
			a.metrics.TracksPublished.WithLabelValues(string(source)).Set(0)
			a.logger.Warn("source fetch failed", "source", source, "reason", reason, "error", res.err, "duration", res.duration)
			continue
		}

		tracks := a.normalizer.NormalizeBatch(source, res.records, a.logger)
		snap.Tracks = append(snap.Tracks, tracks...)
		snap.SourceStatus[source] = domain.OK()
		a.metrics.TracksPublished.WithLabelValues(string(source)).Set(float64(len(tracks)))
		a.logger.Debug("source fetched", "source", source, "records", len(res.records), "tracks", len(tracks), "duration", res.duration)
	}

	snap.GeneratedAt = a.clock.Now().UTC()
	published := a.store.Publish(snap)
	a.writeSinks(ctx, published)

	outcome := OutcomeComplete
	switch {
	case failed == len(a.adapters):
		outcome = OutcomeFailed
	case failed > 0:
		outcome = OutcomePartial
	}
	a.metrics.Cycles.WithLabelValues(outcome).Inc()
	a.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("cycle complete",
		"outcome", outcome,
		"tracks", len(published.Tracks),
		"failed_sources", failed,
		"duration", time.Since(start),
	)
	return published
}

// fetch runs one adapter within the fetch timeout. A fetch that overruns is
// abandoned: its goroutine finishes into a buffered channel nobody reads.
func (a *Aggregator) fetch(ctx context.Context, ad Adapter) fetchResult {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("%s adapter panic: %v", ad.Source(), r)}
			}
		}()
		records, err := ad.Fetch(fctx)
		done <- fetchResult{records: records, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
		if res.err != nil && errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res.err = fmt.Errorf("%s: %w: %w", ad.Source(), domain.ErrFetchTimeout, res.err)
		}
	case <-fctx.Done():
		if err := ctx.Err(); err != nil {
			res.err = err
		} else {
			res.err = fmt.Errorf("%s: %w after %s", ad.Source(), domain.ErrFetchTimeout, a.fetchTimeout)
		}
	}
	res.duration = time.Since(start)
	return res
}

func (a *Aggregator) writeSinks(ctx context.Context, snap domain.Snapshot) {
	for _, sink := range a.sinks {
		sctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		err := sink.Write(sctx, snap)
		cancel()
		if err != nil {
			a.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			a.logger.Error("snapshot sink failed", "sink", sink.Name(), "error", err)
		}
	}
}
