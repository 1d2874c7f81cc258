// Package opensky fetches aircraft state vectors from the OpenSky Network
// REST API using tokens from a credential pool.
package opensky

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchcryptid/track-aggregator/internal/adapter/upstream"
	"github.com/couchcryptid/track-aggregator/internal/credentials"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/goccy/go-json"
)

// BoundingBox limits the states requested from OpenSky.
type BoundingBox struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// Contains reports whether a coordinate lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// TokenBroker is the part of credentials.Broker the adapter needs.
type TokenBroker interface {
	GetToken(ctx context.Context, pool string) (credentials.Token, error)
	ReportRateLimited(pool string) error
	Invalidate(pool, credentialID string) error
	Advance(pool string) error
	PoolSize(pool string) int
}

// Client implements aggregator.Adapter for the radar source.
type Client struct {
	baseURL  string
	pool     string
	bbox     BoundingBox
	broker   TokenBroker
	upstream *upstream.Client
	logger   *slog.Logger
}

// NewClient creates an OpenSky adapter drawing tokens from pool.
func NewClient(baseURL, pool string, bbox BoundingBox, broker TokenBroker, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		pool:     pool,
		bbox:     bbox,
		broker:   broker,
		upstream: upstream.NewClient(domain.SourceRadar, httpClient),
		logger:   logger,
	}
}

func (c *Client) Source() domain.SourceType { return domain.SourceRadar }

// Fetch requests the current state vectors inside the bounding box. A rate
// limited, unauthorized or token-less attempt moves to another credential
// and retries, up to one attempt per credential in the pool.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	attempts := max(c.broker.PoolSize(c.pool), 1)
	requestURL := c.requestURL()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := c.broker.GetToken(ctx, c.pool)
		if err != nil {
			if errors.Is(err, domain.ErrCredentialsExhausted) || ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("token request failed, trying next credential", "pool", c.pool, "attempt", attempt, "error", err)
			lastErr = err
			if advErr := c.broker.Advance(c.pool); advErr != nil {
				return nil, advErr
			}
			continue
		}

		var resp statesResponse
		err = c.upstream.GetJSON(ctx, requestURL, upstream.Bearer(tok.Value), &resp)
		if err == nil {
			return c.records(resp), nil
		}

		var httpErr *domain.UpstreamHTTPError
		if !errors.As(err, &httpErr) {
			return nil, err
		}
		switch httpErr.Status {
		case http.StatusTooManyRequests:
			c.logger.Warn("rate limited, rotating credential", "pool", c.pool, "credential", tok.CredentialID, "attempt", attempt)
			if rlErr := c.broker.ReportRateLimited(c.pool); rlErr != nil {
				return nil, rlErr
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			c.logger.Warn("token refused, invalidating credential", "pool", c.pool, "credential", tok.CredentialID, "status", httpErr.Status)
			if invErr := c.broker.Invalidate(c.pool, tok.CredentialID); invErr != nil {
				return nil, invErr
			}
		default:
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts in pool %s: %v", domain.ErrCredentialsExhausted, attempts, c.pool, lastErr)
}

func (c *Client) requestURL() string {
	params := url.Values{
		"lamin": {formatCoord(c.bbox.LatMin)},
		"lomin": {formatCoord(c.bbox.LonMin)},
		"lamax": {formatCoord(c.bbox.LatMax)},
		"lomax": {formatCoord(c.bbox.LonMax)},
	}
	return c.baseURL + "?" + params.Encode()
}

// records decodes every state on its own so one malformed vector does not
// discard the rest. States reported outside the box are dropped.
func (c *Client) records(resp statesResponse) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, len(resp.States))
	for i, raw := range resp.States {
		var rec domain.RadarRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Warn("skipping state vector", "index", i, "error", err)
			continue
		}
		if rec.Latitude != nil && rec.Longitude != nil && !c.bbox.Contains(*rec.Latitude, *rec.Longitude) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// OpenSky /states/all response.

type statesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}
