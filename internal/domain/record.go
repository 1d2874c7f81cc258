package domain

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// RawRecord is one upstream record before normalization. Each source has its
// own concrete type carrying only the fields that source provides.
type RawRecord interface {
	Source() SourceType
}

// RadarRecord is an OpenSky state vector. Indices of the upstream array:
//
//	0 icao24, 1 callsign, 2 origin_country, 3 time_position, 4 last_contact,
//	5 longitude, 6 latitude, 7 baro_altitude, 8 on_ground, 9 velocity,
//	10 true_track, ...
type RadarRecord struct {
	ICAO24        string
	Callsign      string
	OriginCountry string
	TimePosition  *float64
	LastContact   *float64
	Longitude     *float64
	Latitude      *float64
	BaroAltitude  *float64 // metres
	OnGround      bool
	Velocity      *float64 // m/s
	TrueTrack     *float64 // degrees
}

func (RadarRecord) Source() SourceType { return SourceRadar }

// radarStateFields is the minimum array length for a usable state vector.
const radarStateFields = 11

// UnmarshalJSON decodes a state vector array. Wrongly typed elements decode
// as absent; only a non-array or a short array is rejected.
func (r *RadarRecord) UnmarshalJSON(data []byte) error {
	var fields []any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: state vector: %v", ErrMalformedRecord, err)
	}
	if len(fields) < radarStateFields {
		return fmt.Errorf("%w: state vector has %d fields, want %d", ErrMalformedRecord, len(fields), radarStateFields)
	}

	*r = RadarRecord{
		ICAO24:        stringAt(fields, 0),
		Callsign:      strings.TrimSpace(stringAt(fields, 1)),
		OriginCountry: stringAt(fields, 2),
		TimePosition:  floatAt(fields, 3),
		LastContact:   floatAt(fields, 4),
		Longitude:     floatAt(fields, 5),
		Latitude:      floatAt(fields, 6),
		BaroAltitude:  floatAt(fields, 7),
		OnGround:      boolAt(fields, 8),
		Velocity:      floatAt(fields, 9),
		TrueTrack:     floatAt(fields, 10),
	}
	return nil
}

// MarineRecord is one vessel position from the marine traffic feed.
type MarineRecord struct {
	MMSI      int64
	Longitude *float64
	Latitude  *float64
	SOG       *float64 // speed over ground, knots
	COG       *float64 // course over ground, degrees
	Heading   *float64
	NavStat   *int
	Timestamp int64
}

func (MarineRecord) Source() SourceType { return SourceMarine }

// PracticeRecord is an already-transformed aircraft from the practice tool.
type PracticeRecord struct {
	ID         int      `json:"id"`
	AircraftID string   `json:"aircraftId"`
	Position   string   `json:"position"`
	Altitude   string   `json:"altitude"`
	Speed      string   `json:"speed"`
	Direction  *float64 `json:"direction"`
	Details    string   `json:"details"`
	IsExited   bool     `json:"isExited"`
}

func (PracticeRecord) Source() SourceType { return SourcePractice }

// GeneratedRecord is a state array from the generated traffic feed:
//
//	0 aircraft_id, 1 time_position, 2 speed, 3 altitude, 4 longitude,
//	5 latitude, 6 heading, 7 additional info, 8 is_exited
type GeneratedRecord struct {
	AircraftID     string
	TimePosition   *float64
	Speed          *float64 // m/s
	Altitude       *float64 // metres
	Longitude      *float64
	Latitude       *float64
	Heading        *float64
	AdditionalInfo string
	IsExited       bool
}

func (GeneratedRecord) Source() SourceType { return SourceGenerated }

const generatedStateFields = 9

func (g *GeneratedRecord) UnmarshalJSON(data []byte) error {
	var fields []any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: generated state: %v", ErrMalformedRecord, err)
	}
	if len(fields) < generatedStateFields {
		return fmt.Errorf("%w: generated state has %d fields, want %d", ErrMalformedRecord, len(fields), generatedStateFields)
	}

	*g = GeneratedRecord{
		AircraftID:     idAt(fields, 0),
		TimePosition:   floatAt(fields, 1),
		Speed:          floatAt(fields, 2),
		Altitude:       floatAt(fields, 3),
		Longitude:      floatAt(fields, 4),
		Latitude:       floatAt(fields, 5),
		Heading:        floatAt(fields, 6),
		AdditionalInfo: stringAt(fields, 7),
		IsExited:       boolAt(fields, 8),
	}
	return nil
}

func stringAt(fields []any, i int) string {
	s, _ := fields[i].(string)
	return s
}

// idAt accepts string or numeric identifiers.
func idAt(fields []any, i int) string {
	switch v := fields[i].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func floatAt(fields []any, i int) *float64 {
	v, ok := fields[i].(float64)
	if !ok {
		return nil
	}
	return &v
}

func boolAt(fields []any, i int) bool {
	b, _ := fields[i].(bool)
	return b
}
