// Package practice fetches already-classified aircraft from the practice tool.
package practice

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/track-aggregator/internal/adapter/upstream"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/goccy/go-json"
)

// Client implements aggregator.Adapter for the practice source.
type Client struct {
	url      string
	upstream *upstream.Client
	logger   *slog.Logger
}

func NewClient(url string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		url:      url,
		upstream: upstream.NewClient(domain.SourcePractice, httpClient),
		logger:   logger,
	}
}

func (c *Client) Source() domain.SourceType { return domain.SourcePractice }

// Fetch decodes each aircraft on its own so one bad entry does not drop the
// whole list.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var aircraft []json.RawMessage
	if err := c.upstream.GetJSON(ctx, c.url, nil, &aircraft); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(aircraft))
	for i, raw := range aircraft {
		var rec domain.PracticeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Warn("skipping practice aircraft", "index", i, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
