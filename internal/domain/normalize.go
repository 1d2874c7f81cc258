package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/track-aggregator/internal/geo"
)

// Normalizer maps raw upstream records onto the canonical Track schema.
// Positions are encoded at GridPrecision and published at DisplayPrecision.
type Normalizer struct {
	GridPrecision    int
	DisplayPrecision int

	// OnSkip, when set, is called once per record dropped by NormalizeBatch.
	OnSkip func(source SourceType, reason string)
}

// NewNormalizer returns a Normalizer with the given precisions, clamped into
// the grid encoder's range and with display never finer than the encoding.
func NewNormalizer(gridPrecision, displayPrecision int) *Normalizer {
	gridPrecision = min(max(gridPrecision, 0), geo.MaxPrecision)
	displayPrecision = min(max(displayPrecision, 0), gridPrecision)
	return &Normalizer{GridPrecision: gridPrecision, DisplayPrecision: displayPrecision}
}

// Skip reasons passed to OnSkip.
const (
	SkipGrounded  = "on_ground"
	SkipMalformed = "malformed"
)

// Normalize converts one record. Only a record that cannot be identified is
// rejected with ErrMalformedRecord; bad coordinates leave the position absent.
func (n *Normalizer) Normalize(rec RawRecord) (Track, error) {
	return n.normalize(rec, slog.New(slog.DiscardHandler))
}

// NormalizeBatch converts the records of one source, preserving their order.
// Grounded radar records and malformed records are dropped and logged.
func (n *Normalizer) NormalizeBatch(source SourceType, records []RawRecord, logger *slog.Logger) []Track {
	tracks := make([]Track, 0, len(records))
	for i, rec := range records {
		if !IsAirborne(rec) {
			n.skipped(source, SkipGrounded)
			continue
		}
		track, err := n.normalize(rec, logger)
		if err != nil {
			logger.Warn("skipping record", "source", source, "index", i, "error", err)
			n.skipped(source, SkipMalformed)
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks
}

func (n *Normalizer) skipped(source SourceType, reason string) {
	if n.OnSkip != nil {
		n.OnSkip(source, reason)
	}
}

func (n *Normalizer) normalize(rec RawRecord, logger *slog.Logger) (Track, error) {
	switch r := rec.(type) {
	case RadarRecord:
		return n.radar(r, logger)
	case MarineRecord:
		return n.marine(r, logger)
	case PracticeRecord:
		return n.practice(r, logger)
	case GeneratedRecord:
		return n.generated(r, logger)
	default:
		return Track{}, fmt.Errorf("%w: unsupported record type %T", ErrMalformedRecord, rec)
	}
}

func (n *Normalizer) radar(r RadarRecord, logger *slog.Logger) (Track, error) {
	externalID := strings.TrimSpace(r.ICAO24)
	if externalID == "" {
		return Track{}, fmt.Errorf("%w: radar state without icao24", ErrMalformedRecord)
	}
	return Track{
		ID:         trackID(SourceRadar, externalID),
		ExternalID: externalID,
		Position:   n.position(SourceRadar, externalID, r.Latitude, r.Longitude, logger),
		Altitude:   ClassifyAltitude(r.BaroAltitude),
		Speed:      ClassifySpeed(r.Velocity),
		Direction:  NormalizeDirection(r.TrueTrack),
		Details:    ComposeDetails(r.Callsign, r.OriginCountry),
		Source:     SourceRadar,
	}, nil
}

func (n *Normalizer) marine(r MarineRecord, logger *slog.Logger) (Track, error) {
	if r.MMSI <= 0 {
		return Track{}, fmt.Errorf("%w: vessel without mmsi", ErrMalformedRecord)
	}
	externalID := strconv.FormatInt(r.MMSI, 10)

	course := r.COG
	if course == nil {
		course = r.Heading
	}

	return Track{
		ID:         trackID(SourceMarine, externalID),
		ExternalID: externalID,
		Position:   n.position(SourceMarine, externalID, r.Latitude, r.Longitude, logger),
		Altitude:   AltitudeSurface,
		Speed:      ClassifySpeed(knotsToMetresPerSecond(r.SOG)),
		Direction:  NormalizeDirection(course),
		Details:    ComposeDetails(externalID, navStatusText(r.NavStat)),
		Source:     SourceMarine,
	}, nil
}

// practice records arrive already classified, so only values in the
// canonical vocabulary survive.
func (n *Normalizer) practice(r PracticeRecord, logger *slog.Logger) (Track, error) {
	externalID := strings.TrimSpace(r.AircraftID)
	if externalID == "" {
		return Track{}, fmt.Errorf("%w: practice aircraft without aircraftId", ErrMalformedRecord)
	}

	var position *string
	if r.Position != "" {
		short, err := geo.Shorten(strings.ToUpper(strings.TrimSpace(r.Position)), n.DisplayPrecision)
		if err != nil {
			logger.Debug("dropping position", "source", SourcePractice, "id", externalID, "error", err)
		} else {
			position = &short
		}
	}

	return Track{
		ID:         trackID(SourcePractice, externalID),
		ExternalID: externalID,
		Position:   position,
		Altitude:   parseAltitudeBand(r.Altitude),
		Speed:      parseSpeedBand(r.Speed),
		Direction:  NormalizeDirection(r.Direction),
		Details:    orUnknown(r.Details),
		Exited:     r.IsExited,
		Source:     SourcePractice,
	}, nil
}

func (n *Normalizer) generated(r GeneratedRecord, logger *slog.Logger) (Track, error) {
	externalID := strings.TrimSpace(r.AircraftID)
	if externalID == "" {
		return Track{}, fmt.Errorf("%w: generated state without aircraft id", ErrMalformedRecord)
	}
	return Track{
		ID:         trackID(SourceGenerated, externalID),
		ExternalID: externalID,
		Position:   n.position(SourceGenerated, externalID, r.Latitude, r.Longitude, logger),
		Altitude:   ClassifyAltitude(r.Altitude),
		Speed:      ClassifySpeed(r.Speed),
		Direction:  NormalizeDirection(r.Heading),
		Details:    orUnknown(r.AdditionalInfo),
		Exited:     r.IsExited,
		Source:     SourceGenerated,
	}, nil
}

// position encodes and shortens a coordinate pair. Absent or out-of-domain
// coordinates yield nil.
func (n *Normalizer) position(source SourceType, id string, lat, lon *float64, logger *slog.Logger) *string {
	if lat == nil || lon == nil {
		return nil
	}
	if err := geo.Check(*lat, *lon); err != nil {
		logger.Debug("dropping position", "source", source, "id", id, "error", err)
		return nil
	}
	code, ok := geo.Encode(*lat, *lon, n.GridPrecision)
	if !ok {
		return nil
	}
	short, err := geo.Shorten(code, n.DisplayPrecision)
	if err != nil {
		logger.Debug("dropping position", "source", source, "id", id, "error", err)
		return nil
	}
	return &short
}

// trackID derives a stable identifier from the source and external id, so a
// moving object keeps its id from one cycle to the next.
func trackID(source SourceType, externalID string) string {
	hash := sha256.Sum256([]byte(string(source) + "|" + externalID))
	return string(source) + "-" + hex.EncodeToString(hash[:8])
}
