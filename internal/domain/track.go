package domain

import (
	"fmt"
	"time"
)

// SourceType identifies which upstream a track came from.
type SourceType string

const (
	SourceRadar     SourceType = "radar"
	SourceMarine    SourceType = "marine"
	SourcePractice  SourceType = "practice"
	SourceGenerated SourceType = "generated"
)

// Valid reports whether s is one of the known source types.
func (s SourceType) Valid() bool {
	switch s {
	case SourceRadar, SourceMarine, SourcePractice, SourceGenerated:
		return true
	default:
		return false
	}
}

// AltitudeBand is the coarse altitude classification published to clients.
type AltitudeBand string

const (
	AltitudeSurface AltitudeBand = "surface"
	AltitudeLow     AltitudeBand = "low"
	AltitudeHigh    AltitudeBand = "high"
	AltitudeUnknown AltitudeBand = "unknown"
)

// SpeedBand is the coarse speed classification published to clients.
type SpeedBand string

const (
	SpeedSlow       SpeedBand = "slow"
	SpeedFast       SpeedBand = "fast"
	SpeedSupersonic SpeedBand = "supersonic"
	SpeedUnknown    SpeedBand = "unknown"
)

// Track is one normalized telemetry record. The JSON field names are the
// read API's wire contract and must not change.
type Track struct {
	ID         string       `json:"id"`
	ExternalID string       `json:"aircraftId"`
	Position   *string      `json:"position"`
	Altitude   AltitudeBand `json:"altitude"`
	Speed      SpeedBand    `json:"speed"`
	Direction  int          `json:"direction"`
	Details    string       `json:"details"`
	Exited     bool         `json:"isExited"`
	Source     SourceType   `json:"type"`
}

// StatusState is the outcome of one source in one cycle.
type StatusState string

const (
	StatusOK    StatusState = "ok"
	StatusError StatusState = "error"
)

// SourceStatus records whether a source contributed to a snapshot.
type SourceStatus struct {
	State  StatusState `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// OK returns a successful status.
func OK() SourceStatus { return SourceStatus{State: StatusOK} }

// Failed returns an error status carrying reason.
func Failed(reason string) SourceStatus {
	return SourceStatus{State: StatusError, Reason: reason}
}

// Snapshot is the merged result of one aggregation cycle. It is read-only
// once published.
type Snapshot struct {
	Tracks       []Track
	GeneratedAt  time.Time
	SourceStatus map[SourceType]SourceStatus
}

// EmptySnapshot is served before the first cycle completes.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Tracks:       []Track{},
		GeneratedAt:  time.Unix(0, 0).UTC(),
		SourceStatus: map[SourceType]SourceStatus{},
	}
}

// SnapshotView is the serialized form of a snapshot used by the read API,
// the cache and the Kafka fan-out.
type SnapshotView struct {
	TrackCount  int                         `json:"trackCount"`
	GeneratedAt string                      `json:"generatedAt"`
	Aircraft    []Track                     `json:"aircraft"`
	Sources     map[SourceType]SourceStatus `json:"sources,omitempty"`
}

// NewSnapshotView builds the read API document for s.
func NewSnapshotView(s Snapshot) SnapshotView {
	tracks := s.Tracks
	if tracks == nil {
		tracks = []Track{}
	}
	return SnapshotView{
		TrackCount:  len(tracks),
		GeneratedAt: s.GeneratedAt.UTC().Format(time.RFC3339),
		Aircraft:    tracks,
	}
}

// NewCacheDocument is NewSnapshotView plus per-source status, so a reader
// outside this process can rebuild the whole snapshot.
func NewCacheDocument(s Snapshot) SnapshotView {
	v := NewSnapshotView(s)
	v.Sources = s.SourceStatus
	return v
}

// SnapshotFromView reverses NewCacheDocument.
func SnapshotFromView(v SnapshotView) (Snapshot, error) {
	generatedAt, err := time.Parse(time.RFC3339, v.GeneratedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse generatedAt: %w", err)
	}
	s := Snapshot{
		Tracks:       v.Aircraft,
		GeneratedAt:  generatedAt,
		SourceStatus: v.Sources,
	}
	if s.Tracks == nil {
		s.Tracks = []Track{}
	}
	if s.SourceStatus == nil {
		s.SourceStatus = map[SourceType]SourceStatus{}
	}
	return s, nil
}
