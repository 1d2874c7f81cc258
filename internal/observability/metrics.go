package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "track_aggregator"

// Metrics holds the Prometheus counters, histograms, and gauges for the aggregator.
type Metrics struct {
	// Cycle metrics.
	Cycles        *prometheus.CounterVec // labels: outcome={complete,partial,failed}
	CycleDuration prometheus.Histogram

	// Per-source fetch metrics.
	FetchDuration   *prometheus.HistogramVec // labels: source
	FetchFailures   *prometheus.CounterVec   // labels: source, reason
	TracksPublished *prometheus.GaugeVec     // labels: source
	RecordsSkipped  *prometheus.CounterVec   // labels: source, reason

	// Scheduler metrics.
	SchedulerRunning      prometheus.Gauge
	SchedulerSkippedTicks prometheus.Counter

	// Credential broker metrics.
	TokenRequests       *prometheus.CounterVec // labels: pool, outcome={cached,fetched,error}
	CredentialRotations *prometheus.CounterVec // labels: pool
	QuotaResets         *prometheus.CounterVec // labels: pool

	BreakerState *prometheus.GaugeVec   // labels: source; 0 closed, 1 half-open, 2 open
	SinkErrors   *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all aggregator metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.FetchDuration,
		m.FetchFailures,
		m.TracksPublished,
		m.RecordsSkipped,
		m.SchedulerRunning,
		m.SchedulerSkippedTicks,
		m.TokenRequests,
		m.CredentialRotations,
		m.QuotaResets,
		m.BreakerState,
		m.SinkErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Aggregation cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 25, 30},
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch duration by source.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}, []string{"source"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed upstream fetches by source and reason.",
		}, []string{"source", "reason"}),
		TracksPublished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracks_published",
			Help:      "Tracks in the latest snapshot by source.",
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Upstream records dropped during normalization by source and reason.",
		}, []string{"source", "reason"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		SchedulerSkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_skipped_ticks_total",
			Help:      "Ticks skipped because the previous cycle was still running.",
		}),
		TokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_requests_total",
			Help:      "Access token lookups by pool and outcome.",
		}, []string{"pool", "outcome"}),
		CredentialRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_rotations_total",
			Help:      "Times the selected credential changed, by pool.",
		}, []string{"pool"}),
		QuotaResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_resets_total",
			Help:      "Pool-wide quota resets after every credential was rate limited.",
		}, []string{"pool"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state by source: 0 closed, 1 half-open, 2 open.",
		}, []string{"source"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Snapshot sink write failures by sink.",
		}, []string{"sink"}),
	}
}
