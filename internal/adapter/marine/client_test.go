package marine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vesselsBody = `{
	"type": "FeatureCollection",
	"dataUpdatedTime": "2026-03-01T12:00:00Z",
	"features": [
		{"mmsi": 230123456, "type": "Feature",
		 "geometry": {"type": "Point", "coordinates": [24.95, 60.15]},
		 "properties": {"mmsi": 230123456, "sog": 12.5, "cog": 181.6, "navStat": 0, "posAcc": true, "raim": false, "heading": 182, "timestamp": 30, "timestampExternal": 1772366400000}},
		{"mmsi": 230999999, "type": "Feature",
		 "geometry": {"type": "Point", "coordinates": [25.1, 60.2]},
		 "properties": {"mmsi": 230999999, "sog": 102.3, "cog": 360, "navStat": 5, "posAcc": false, "raim": false, "heading": 511, "timestamp": 12, "timestampExternal": 1772366400000}}
	]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer demo-marine-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(vesselsBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "demo-marine-token", srv.Client(), discardLogger())
	assert.Equal(t, domain.SourceMarine, c.Source())

	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0].(domain.MarineRecord)
	assert.Equal(t, int64(230123456), first.MMSI)
	assert.Equal(t, ptr(60.15), first.Latitude)
	assert.Equal(t, ptr(24.95), first.Longitude)
	assert.Equal(t, ptr(12.5), first.SOG)
	assert.Equal(t, ptr(181.6), first.COG)
	require.NotNil(t, first.NavStat)
	assert.Equal(t, 0, *first.NavStat)

	moored := records[1].(domain.MarineRecord)
	assert.Nil(t, moored.SOG, "102.3 knots means not available")
	assert.Nil(t, moored.COG, "360 degrees means not available")
	assert.Nil(t, moored.Heading, "511 means not available")
}

func TestFetch_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL, "", srv.Client(), discardLogger()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", srv.Client(), discardLogger()).Fetch(context.Background())
	assert.Equal(t, domain.ReasonUpstreamHTTP, domain.FailureReason(err))
}

func TestFeatureRecord_FallsBackToFeatureMMSI(t *testing.T) {
	rec := feature{MMSI: 266000001}.record().(domain.MarineRecord)
	assert.Equal(t, int64(266000001), rec.MMSI)
	assert.Nil(t, rec.Latitude)
}

func TestFetch_SkipsMalformedFeature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"mmsi":230123456,"geometry":{"type":"Point","coordinates":[24.95,60.15]},"properties":{"mmsi":230123456,"sog":3.2}},
			{"mmsi":"bad","geometry":{"type":"Point","coordinates":[25.1,60.2]},"properties":{"mmsi":"bad"}}
		]}`))
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL, "", srv.Client(), discardLogger()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(230123456), records[0].(domain.MarineRecord).MMSI)
}
