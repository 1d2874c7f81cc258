// Package snapshot holds the latest published track snapshot.
package snapshot

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/couchcryptid/track-aggregator/internal/domain"
)

// Store is a single-writer, many-reader holder for the current snapshot.
// Readers never block and always see a complete snapshot.
type Store struct {
	current   atomic.Pointer[domain.Snapshot]
	published atomic.Bool
}

// NewStore returns a store serving the empty snapshot.
func NewStore() *Store {
	s := &Store{}
	empty := domain.EmptySnapshot()
	s.current.Store(&empty)
	return s
}

// Current returns the latest snapshot. Callers must treat it as read-only.
func (s *Store) Current() domain.Snapshot {
	return *s.current.Load()
}

// Publish replaces the current snapshot. GeneratedAt never moves backwards:
// a snapshot stamped earlier than its predecessor takes the predecessor's
// time. Publish must only be called from one goroutine.
func (s *Store) Publish(snap domain.Snapshot) domain.Snapshot {
	prev := s.current.Load()
	if snap.GeneratedAt.Before(prev.GeneratedAt) {
		snap.GeneratedAt = prev.GeneratedAt
	}
	if snap.Tracks == nil {
		snap.Tracks = []domain.Track{}
	}
	if snap.SourceStatus == nil {
		snap.SourceStatus = map[domain.SourceType]domain.SourceStatus{}
	}
	s.current.Store(&snap)
	s.published.Store(true)
	return snap
}

// Restore seeds the store with a snapshot loaded from the cache. It is only
// applied while nothing newer has been published.
func (s *Store) Restore(snap domain.Snapshot) bool {
	if s.published.Load() {
		return false
	}
	s.Publish(snap)
	return true
}

// CheckReadiness returns nil once a snapshot has been published or restored.
func (s *Store) CheckReadiness(_ context.Context) error {
	if !s.published.Load() {
		return errors.New("no snapshot published yet")
	}
	return nil
}
