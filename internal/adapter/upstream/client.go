// Package upstream holds the HTTP plumbing shared by the source adapters.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/goccy/go-json"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 512

// Client performs JSON GET requests against one upstream provider.
type Client struct {
	source     domain.SourceType
	httpClient *http.Client
}

// NewClient wraps a shared *http.Client for one source.
func NewClient(source domain.SourceType, httpClient *http.Client) *Client {
	return &Client{source: source, httpClient: httpClient}
}

// GetJSON fetches rawURL and decodes the body into v. Non-200 responses
// become *domain.UpstreamHTTPError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.UpstreamHTTPError{
			Source: c.source,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", c.source, err)
	}
	return nil
}

// Bearer returns an Authorization header for token, or nil when token is empty.
func Bearer(token string) http.Header {
	if token == "" {
		return nil
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}
