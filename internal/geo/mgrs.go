// Package geo converts WGS-84 coordinates into Military Grid Reference System
// (MGRS) codes and manipulates their precision.
//
// # Code layout
//
//	35VLG8571
//	│ │││ └─┴── easting / northing digits (precision digits each)
//	│ │└┴────── 100 km square identifier (column, row)
//	│ └──────── latitude band (8° bands, C..X, X spans 12°)
//	└────────── UTM zone (1-60)
//
// A precision of 5 resolves to 1 m, 1 to 10 km and 0 to the 100 km square.
// Digits are truncated, never rounded, so a shorter code always names the
// cell that contains the longer one.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPrecision is the number of digits per axis at 1 m resolution.
const MaxPrecision = 5

const (
	minLat = -80.0
	maxLat = 84.0

	// WGS-84 ellipsoid.
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
	scale      = 0.9996

	falseEasting  = 500000.0
	falseNorthing = 10000000.0
)

const (
	bandLetters = "CDEFGHJKLMNPQRSTUVWX"
	rowLetters  = "ABCDEFGHJKLMNPQRSTUV"
)

// columnSets holds the 100 km column letters; zones cycle through the three sets.
var columnSets = [3]string{"ABCDEFGH", "JKLMNPQR", "STUVWXYZ"}

// EncodeError describes a coordinate or code that lies outside the grid's domain.
type EncodeError struct {
	Input  string
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("grid encode %s: %s", e.Input, e.Reason)
}

// Code is a parsed grid reference.
type Code struct {
	Zone     int
	Band     byte
	Square   string
	Easting  string
	Northing string
}

// Prefix returns the zone, band and 100 km square, e.g. "35VLG".
func (c Code) Prefix() string {
	return strconv.Itoa(c.Zone) + string(c.Band) + c.Square
}

// Precision returns the number of digits per axis.
func (c Code) Precision() int {
	return len(c.Easting)
}

func (c Code) String() string {
	return c.Prefix() + c.Easting + c.Northing
}

// Check reports whether lat/lon can be encoded.
func Check(lat, lon float64) error {
	input := fmt.Sprintf("(%g, %g)", lat, lon)
	switch {
	case math.IsNaN(lat) || math.IsNaN(lon):
		return &EncodeError{Input: input, Reason: "coordinate is NaN"}
	case lat < minLat || lat > maxLat:
		return &EncodeError{Input: input, Reason: "latitude outside [-80, 84]"}
	case lon < -180 || lon > 180:
		return &EncodeError{Input: input, Reason: "longitude outside [-180, 180]"}
	}
	return nil
}

// Encode converts decimal degrees into a grid code with the given number of
// digits per axis (clamped to 0..5). It returns false when the coordinates are
// outside the grid's domain.
func Encode(lat, lon float64, precision int) (string, bool) {
	if Check(lat, lon) != nil {
		return "", false
	}
	precision = clampPrecision(precision)

	zone := zoneNumber(lat, lon)
	easting, northing := toUTM(lat, lon, zone)

	band := bandLetter(lat)
	square := squareID(zone, easting, northing)

	var b strings.Builder
	b.Grow(5 + 2*precision)
	b.WriteString(strconv.Itoa(zone))
	b.WriteByte(band)
	b.WriteString(square)
	b.WriteString(truncateDigits(easting, precision))
	b.WriteString(truncateDigits(northing, precision))
	return b.String(), true
}

// EncodeOptional is Encode for inputs that may be absent.
func EncodeOptional(lat, lon *float64, precision int) (string, bool) {
	if lat == nil || lon == nil {
		return "", false
	}
	return Encode(*lat, *lon, precision)
}

// Parse splits a grid code into its components.
func Parse(code string) (Code, error) {
	s := strings.ToUpper(strings.TrimSpace(code))

	i := 0
	for i < len(s) && i < 2 && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Code{}, &EncodeError{Input: code, Reason: "missing zone number"}
	}
	zone, err := strconv.Atoi(s[:i])
	if err != nil || zone < 1 || zone > 60 {
		return Code{}, &EncodeError{Input: code, Reason: "zone outside 1..60"}
	}

	if len(s) < i+3 {
		return Code{}, &EncodeError{Input: code, Reason: "missing band or square"}
	}
	band := s[i]
	if !strings.ContainsRune(bandLetters, rune(band)) {
		return Code{}, &EncodeError{Input: code, Reason: "invalid latitude band"}
	}
	square := s[i+1 : i+3]
	if !strings.ContainsRune(columnSets[(zone-1)%3], rune(square[0])) ||
		!strings.ContainsRune(rowLetters, rune(square[1])) {
		return Code{}, &EncodeError{Input: code, Reason: "invalid 100km square"}
	}

	digits := s[i+3:]
	if len(digits)%2 != 0 || len(digits) > 2*MaxPrecision {
		return Code{}, &EncodeError{Input: code, Reason: "unbalanced easting/northing digits"}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Code{}, &EncodeError{Input: code, Reason: "non-digit in easting/northing"}
		}
	}
	half := len(digits) / 2

	return Code{
		Zone:     zone,
		Band:     band,
		Square:   square,
		Easting:  digits[:half],
		Northing: digits[half:],
	}, nil
}

// Shorten truncates the easting and northing digits to precision while keeping
// the zone, band and square. Codes already at or below precision are returned
// unchanged, so repeated shortening is stable.
func Shorten(code string, precision int) (string, error) {
	c, err := Parse(code)
	if err != nil {
		return "", err
	}
	precision = clampPrecision(precision)
	if precision >= c.Precision() {
		return c.String(), nil
	}
	c.Easting = c.Easting[:precision]
	c.Northing = c.Northing[:precision]
	return c.String(), nil
}

func clampPrecision(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxPrecision {
		return MaxPrecision
	}
	return p
}

// zoneNumber returns the UTM zone, including the Norway and Svalbard exceptions.
func zoneNumber(lat, lon float64) int {
	if lon >= 180 {
		lon = -180
	}
	zone := int(math.Floor((lon+180)/6)) + 1

	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		return 32
	}
	if lat >= 72 && lat <= 84 && lon >= 0 && lon < 42 {
		switch {
		case lon < 9:
			return 31
		case lon < 21:
			return 33
		case lon < 33:
			return 35
		default:
			return 37
		}
	}
	return zone
}

func bandLetter(lat float64) byte {
	idx := int(math.Floor((lat - minLat) / 8))
	if idx > len(bandLetters)-1 {
		idx = len(bandLetters) - 1
	}
	return bandLetters[idx]
}

// squareID returns the two-letter 100 km square using the AA lettering scheme.
func squareID(zone int, easting, northing float64) string {
	set := columnSets[(zone-1)%3]
	col := int(math.Floor(easting/100000)) - 1
	if col < 0 {
		col = 0
	}
	if col > len(set)-1 {
		col = len(set) - 1
	}

	row := int(math.Floor(northing/100000)) % len(rowLetters)
	if zone%2 == 0 {
		row = (row + 5) % len(rowLetters)
	}
	return string([]byte{set[col], rowLetters[row]})
}

func truncateDigits(metres float64, precision int) string {
	if precision == 0 {
		return ""
	}
	within := int(math.Floor(metres)) % 100000
	divisor := int(math.Pow10(MaxPrecision - precision))
	return fmt.Sprintf("%0*d", precision, within/divisor)
}

// toUTM projects lat/lon onto the given zone's transverse Mercator grid.
func toUTM(lat, lon float64, zone int) (easting, northing float64) {
	e2 := flattening * (2 - flattening)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	lambda0 := float64((zone-1)*6-180+3) * math.Pi / 180
	lambda := lon * math.Pi / 180

	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	n := semiMajor / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := math.Tan(phi) * math.Tan(phi)
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * (lambda - lambda0)

	m := semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	easting = scale*n*(a+
		(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + falseEasting

	northing = scale * (m + n*math.Tan(phi)*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if lat < 0 {
		northing += falseNorthing
	}
	return easting, northing
}
