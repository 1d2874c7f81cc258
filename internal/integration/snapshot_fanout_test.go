//go:build integration

package integration_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/adapter/cache"
	"github.com/couchcryptid/track-aggregator/internal/adapter/generated"
	"github.com/couchcryptid/track-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/track-aggregator/internal/aggregator"
	"github.com/couchcryptid/track-aggregator/internal/config"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/observability"
	"github.com/couchcryptid/track-aggregator/internal/snapshot"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnapshotTopic = "test-track-snapshots"

const generatedFeed = `{"time": 1760529600, "states": [
	["GEN1", 1760529600, 200.0, 250.0, 24.94, 60.17, 87.4, "Jet", false],
	["GEN2", 1760529600, 300.0, 9000.0, 25.5, 62.0, 359.6, "", true],
	["short"]
]}`

// TestSnapshotFanOut runs one aggregation cycle against a fake generated
// upstream and checks the snapshot lands in Kafka and the badger cache.
func TestSnapshotFanOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSnapshotTopic)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(generatedFeed))
	}))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSnapshotTopic: testSnapshotTopic,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	cacheStore := cache.New(db, discardLogger())
	t.Cleanup(func() { _ = cacheStore.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	store := snapshot.NewStore()
	agg, err := aggregator.New(
		[]aggregator.Adapter{generated.NewClient(upstream.URL, upstream.Client(), discardLogger())},
		domain.NewNormalizer(5, 1),
		store,
		aggregator.Options{
			FetchTimeout: 10 * time.Second,
			Sinks:        []aggregator.Sink{cacheStore, writer},
			Clock:        clock,
			Logger:       discardLogger(),
			Metrics:      observability.NewMetricsForTesting(),
		},
	)
	require.NoError(t, err)

	snap := agg.RunCycle(ctx)
	require.Len(t, snap.Tracks, 2)
	assert.Equal(t, domain.OK(), snap.SourceStatus[domain.SourceGenerated])
	require.NoError(t, store.CheckReadiness(ctx))

	// Kafka receives the cache document keyed by generation time.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testSnapshotTopic,
		Partition: 0,
		MaxWait:   time.Second,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from snapshot topic")

	assert.Equal(t, "2026-10-15T12:00:00Z", string(msg.Key))
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "2", headers["track_count"])
	assert.Equal(t, "2026-10-15T12:00:00Z", headers["generated_at"])

	var view domain.SnapshotView
	require.NoError(t, json.Unmarshal(msg.Value, &view))
	assert.Equal(t, 2, view.TrackCount)
	require.Len(t, view.Aircraft, 2)

	first := view.Aircraft[0]
	assert.Equal(t, "GEN1", first.ExternalID)
	require.NotNil(t, first.Position)
	assert.Equal(t, "35VLG87", *first.Position)
	assert.Equal(t, domain.AltitudeSurface, first.Altitude)
	assert.Equal(t, domain.SpeedFast, first.Speed)
	assert.Equal(t, 87, first.Direction)
	assert.Equal(t, "Jet", first.Details)

	second := view.Aircraft[1]
	assert.Equal(t, domain.AltitudeHigh, second.Altitude)
	assert.Equal(t, domain.SpeedSupersonic, second.Speed)
	assert.Equal(t, 0, second.Direction)
	assert.Equal(t, "unknown", second.Details)
	assert.True(t, second.Exited)

	// The cache restores the same snapshot into a fresh store.
	cached, err := cacheStore.Load()
	require.NoError(t, err)
	restored := snapshot.NewStore()
	require.True(t, restored.Restore(cached))
	assert.Equal(t, snap.Tracks, restored.Current().Tracks)
	assert.True(t, snap.GeneratedAt.Equal(restored.Current().GeneratedAt))
}
