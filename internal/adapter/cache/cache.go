// Package cache persists the latest snapshot in BadgerDB so a restarted
// service can serve the previous result until its first cycle completes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Fixed keys, one value each.
const (
	snapshotKey   = "tracks:snapshot"
	lastUpdateKey = "tracks:last_update_time"
)

// ErrEmpty is returned by Load when nothing has been stored yet.
var ErrEmpty = errors.New("snapshot cache is empty")

// Store implements aggregator.Sink on top of a BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the database in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return New(db, logger), nil
}

// New wraps an already open database.
func New(db *badger.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Name() string { return "badger" }

// Write stores the snapshot document and its timestamp in one transaction.
func (s *Store) Write(_ context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(domain.NewCacheDocument(snap))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	stamp := []byte(snap.GeneratedAt.UTC().Format(time.RFC3339))

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(snapshotKey), data); err != nil {
			return fmt.Errorf("set snapshot: %w", err)
		}
		if err := txn.Set([]byte(lastUpdateKey), stamp); err != nil {
			return fmt.Errorf("set last update time: %w", err)
		}
		return nil
	})
}

// Load reads back the stored snapshot.
func (s *Store) Load() (domain.Snapshot, error) {
	var view domain.SnapshotView
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEmpty
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &view)
		})
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.SnapshotFromView(view)
}

// LastUpdate returns the timestamp stored with the latest snapshot.
func (s *Store) LastUpdate() (time.Time, error) {
	var stamp time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastUpdateKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEmpty
		}
		if err != nil {
			return fmt.Errorf("get last update time: %w", err)
		}
		return item.Value(func(val []byte) error {
			t, err := time.Parse(time.RFC3339, string(val))
			stamp = t
			return err
		})
	})
	return stamp, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
