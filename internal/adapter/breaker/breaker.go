// Package breaker guards source adapters with a circuit breaker so a failing
// upstream is skipped quickly instead of consuming its whole fetch budget
// every cycle.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/observability"
	gobreaker "github.com/sony/gobreaker/v2"
)

// DefaultFailureThreshold is the number of consecutive failed fetches that
// opens the circuit.
const DefaultFailureThreshold = 5

// Adapter mirrors aggregator.Adapter.
type Adapter interface {
	Source() domain.SourceType
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// Settings configures one breaker.
type Settings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration // time spent open before a trial fetch
}

// Guarded wraps an Adapter with a circuit breaker.
type Guarded struct {
	next    Adapter
	cb      *gobreaker.CircuitBreaker[[]domain.RawRecord]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Wrap returns next guarded by a breaker named after its source.
func Wrap(next Adapter, s Settings, logger *slog.Logger, metrics *observability.Metrics) *Guarded {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = DefaultFailureThreshold
	}
	name := string(next.Source())
	metrics.BreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	g := &Guarded{next: next, logger: logger, metrics: metrics}
	g.cb = gobreaker.NewCircuitBreaker[[]domain.RawRecord](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "source", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// Cancelled fetches are not upstream failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

func (g *Guarded) Source() domain.SourceType { return g.next.Source() }

// Fetch runs the wrapped fetch unless the circuit is open, in which case it
// fails immediately with domain.ErrCircuitOpen.
func (g *Guarded) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	records, err := g.cb.Execute(func() ([]domain.RawRecord, error) {
		return g.next.Fetch(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", g.next.Source(), domain.ErrCircuitOpen)
	}
	return records, err
}

// State reports the current breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
