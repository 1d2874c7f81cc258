// Package generated fetches synthetic aircraft states from the traffic
// generator (see cmd/mockfeed).
package generated

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/track-aggregator/internal/adapter/upstream"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/goccy/go-json"
)

// Client implements aggregator.Adapter for the generated source.
type Client struct {
	url      string
	upstream *upstream.Client
	logger   *slog.Logger
}

func NewClient(url string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		url:      url,
		upstream: upstream.NewClient(domain.SourceGenerated, httpClient),
		logger:   logger,
	}
}

func (c *Client) Source() domain.SourceType { return domain.SourceGenerated }

// Fetch decodes each state array on its own; malformed states are skipped.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var resp StatesResponse
	if err := c.upstream.GetJSON(ctx, c.url, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.RawRecord, 0, len(resp.States))
	for i, raw := range resp.States {
		var rec domain.GeneratedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Warn("skipping generated state", "index", i, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// StatesResponse is the generator's wire format, shared with cmd/mockfeed.
type StatesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}
