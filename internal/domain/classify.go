package domain

import (
	"math"
	"strings"
)

// Classification thresholds. Altitude in metres, speed in metres per second.
const (
	surfaceCeiling = 300.0
	lowCeiling     = 3000.0

	slowLimit = 140.0
	fastLimit = 280.0

	knotsToMPS = 0.514444
)

// ClassifyAltitude maps an altitude onto a band:
//   - <300 m surface, <3000 m low, otherwise high
//
// Absent or NaN input is unknown.
func ClassifyAltitude(metres *float64) AltitudeBand {
	if metres == nil || math.IsNaN(*metres) {
		return AltitudeUnknown
	}
	switch v := *metres; {
	case v < surfaceCeiling:
		return AltitudeSurface
	case v < lowCeiling:
		return AltitudeLow
	default:
		return AltitudeHigh
	}
}

// ClassifySpeed maps a speed onto a band:
//   - <140 m/s slow, <280 m/s fast, otherwise supersonic
//
// Absent or NaN input is unknown.
func ClassifySpeed(mps *float64) SpeedBand {
	if mps == nil || math.IsNaN(*mps) {
		return SpeedUnknown
	}
	switch v := *mps; {
	case v < slowLimit:
		return SpeedSlow
	case v < fastLimit:
		return SpeedFast
	default:
		return SpeedSupersonic
	}
}

// NormalizeDirection rounds degrees to an integer in [0, 360). Absent input is 0.
func NormalizeDirection(degrees *float64) int {
	if degrees == nil || math.IsNaN(*degrees) || math.IsInf(*degrees, 0) {
		return 0
	}
	d := int(math.Round(*degrees)) % 360
	if d < 0 {
		d += 360
	}
	return d
}

// IsAirborne filters radar records reporting ground contact. Records from
// every other source pass.
func IsAirborne(rec RawRecord) bool {
	switch r := rec.(type) {
	case RadarRecord:
		return !r.OnGround
	case *RadarRecord:
		return r != nil && !r.OnGround
	default:
		return true
	}
}

// ComposeDetails joins two identifying fields, substituting "unknown" for
// either one when it is blank.
func ComposeDetails(first, second string) string {
	return orUnknown(first) + ", " + orUnknown(second)
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}

// parseAltitudeBand accepts only the canonical vocabulary.
func parseAltitudeBand(s string) AltitudeBand {
	switch b := AltitudeBand(strings.ToLower(strings.TrimSpace(s))); b {
	case AltitudeSurface, AltitudeLow, AltitudeHigh:
		return b
	default:
		return AltitudeUnknown
	}
}

func parseSpeedBand(s string) SpeedBand {
	switch b := SpeedBand(strings.ToLower(strings.TrimSpace(s))); b {
	case SpeedSlow, SpeedFast, SpeedSupersonic:
		return b
	default:
		return SpeedUnknown
	}
}

func knotsToMetresPerSecond(knots *float64) *float64 {
	if knots == nil {
		return nil
	}
	v := *knots * knotsToMPS
	return &v
}

// navStatusText returns the AIS navigational status description.
func navStatusText(code *int) string {
	if code == nil {
		return ""
	}
	switch *code {
	case 0:
		return "under way using engine"
	case 1:
		return "at anchor"
	case 2:
		return "not under command"
	case 3:
		return "restricted manoeuvrability"
	case 4:
		return "constrained by draught"
	case 5:
		return "moored"
	case 6:
		return "aground"
	case 7:
		return "engaged in fishing"
	case 8:
		return "under way sailing"
	case 14:
		return "AIS-SART active"
	case 15:
		return "not defined"
	default:
		return "reserved"
	}
}
