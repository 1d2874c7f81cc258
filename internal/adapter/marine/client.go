// Package marine fetches AIS vessel positions from a GeoJSON feed.
package marine

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/track-aggregator/internal/adapter/upstream"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/goccy/go-json"
)

// AIS "not available" sentinels.
const (
	sogUnavailable     = 102.3
	cogUnavailable     = 360.0
	headingUnavailable = 511.0
)

// Client implements aggregator.Adapter for the marine source.
type Client struct {
	url      string
	token    string
	upstream *upstream.Client
	logger   *slog.Logger
}

// NewClient creates a marine traffic adapter. token is optional.
func NewClient(url, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		url:      url,
		token:    token,
		upstream: upstream.NewClient(domain.SourceMarine, httpClient),
		logger:   logger,
	}
}

func (c *Client) Source() domain.SourceType { return domain.SourceMarine }

// Fetch returns one record per vessel feature. Features that fail to decode
// are logged and skipped.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var resp featureCollection
	if err := c.upstream.GetJSON(ctx, c.url, upstream.Bearer(c.token), &resp); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(resp.Features))
	for i, raw := range resp.Features {
		var f feature
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Warn("skipping marine feature", "index", i, "error", err)
			continue
		}
		out = append(out, f.record())
	}
	c.logger.Debug("marine features fetched", "count", len(out))
	return out, nil
}

func (f feature) record() domain.RawRecord {
	mmsi := f.Properties.MMSI
	if mmsi == 0 {
		mmsi = f.MMSI
	}
	rec := domain.MarineRecord{
		MMSI:      mmsi,
		SOG:       available(f.Properties.SOG, sogUnavailable),
		COG:       available(f.Properties.COG, cogUnavailable),
		Heading:   available(f.Properties.Heading, headingUnavailable),
		NavStat:   f.Properties.NavStat,
		Timestamp: f.Properties.TimestampExternal,
	}
	// GeoJSON coordinates are [longitude, latitude].
	if len(f.Geometry.Coordinates) >= 2 {
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		rec.Longitude, rec.Latitude = &lon, &lat
	}
	return rec
}

func available(v *float64, sentinel float64) *float64 {
	if v == nil || *v >= sentinel {
		return nil
	}
	return v
}

// GeoJSON vessel feed types.

type featureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type feature struct {
	MMSI       int64      `json:"mmsi"`
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type properties struct {
	MMSI              int64    `json:"mmsi"`
	SOG               *float64 `json:"sog"`
	COG               *float64 `json:"cog"`
	NavStat           *int     `json:"navStat"`
	Heading           *float64 `json:"heading"`
	Timestamp         int64    `json:"timestamp"`
	TimestampExternal int64    `json:"timestampExternal"`
}
