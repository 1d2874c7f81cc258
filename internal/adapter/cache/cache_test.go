package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func strPtr(s string) *string { return &s }

func TestStore_EmptyLoad(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load()
	require.ErrorIs(t, err, ErrEmpty)
	_, err = s.LastUpdate()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, "badger", s.Name())

	snap := domain.Snapshot{
		Tracks: []domain.Track{
			{ID: "radar-1", ExternalID: "461f2a", Position: strPtr("35VLG87"), Altitude: domain.AltitudeSurface, Speed: domain.SpeedFast, Direction: 87, Details: "FIN1, Finland", Source: domain.SourceRadar},
			{ID: "marine-1", ExternalID: "230123456", Altitude: domain.AltitudeSurface, Speed: domain.SpeedSlow, Details: "230123456, moored", Source: domain.SourceMarine},
		},
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC),
		SourceStatus: map[domain.SourceType]domain.SourceStatus{
			domain.SourceRadar:  domain.OK(),
			domain.SourceMarine: domain.Failed(domain.ReasonTimeout),
		},
	}

	require.NoError(t, s.Write(context.Background(), snap))

	loaded, err := s.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(snap, loaded); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	stamp, err := s.LastUpdate()
	require.NoError(t, err)
	assert.Equal(t, snap.GeneratedAt, stamp)
}

func TestStore_Overwrites(t *testing.T) {
	s := newTestStore(t)
	first := domain.Snapshot{GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	second := domain.Snapshot{
		Tracks:      []domain.Track{{ID: "generated-1", Source: domain.SourceGenerated}},
		GeneratedAt: first.GeneratedAt.Add(30 * time.Second),
	}

	require.NoError(t, s.Write(context.Background(), first))
	require.NoError(t, s.Write(context.Background(), second))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, second.GeneratedAt, loaded.GeneratedAt)
	assert.Len(t, loaded.Tracks, 1)
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(dir, logger)
	require.NoError(t, err)
	snap := domain.Snapshot{GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	require.NoError(t, s.Write(context.Background(), snap))
	require.NoError(t, s.Close())

	reopened, err := Open(dir, logger)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, snap.GeneratedAt, loaded.GeneratedAt)
	assert.Empty(t, loaded.Tracks)
}
