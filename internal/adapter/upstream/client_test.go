package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	c := NewClient(domain.SourceMarine, srv.Client())
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, Bearer("tok"), &out))
	assert.Equal(t, "ok", out.Name)
}

func TestGetJSON_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out map[string]any
	err := NewClient(domain.SourceRadar, srv.Client()).GetJSON(context.Background(), srv.URL, nil, &out)

	var httpErr *domain.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.Equal(t, domain.SourceRadar, httpErr.Source)
	assert.Equal(t, "slow down", httpErr.Body)
}

func TestGetJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := NewClient(domain.SourcePractice, srv.Client()).GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	assert.Equal(t, domain.ReasonError, domain.FailureReason(err))
}

func TestGetJSON_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out map[string]any
	err := NewClient(domain.SourceGenerated, srv.Client()).GetJSON(ctx, srv.URL, nil, &out)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBearer(t *testing.T) {
	assert.Nil(t, Bearer(""))
	assert.Equal(t, "Bearer x", Bearer("x").Get("Authorization"))
}
