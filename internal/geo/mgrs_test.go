package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestEncode_KnownReferences(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		precision int
		expected  string
	}{
		{"helsinki 1m", 60.17, 24.94, 5, "35VLG8570072126"},
		{"helsinki 10km", 60.17, 24.94, 1, "35VLG87"},
		{"white house", 38.8977, -77.0365, 5, "18SUJ2339407395"},
		{"sydney southern hemisphere", -33.8568, 151.2153, 5, "56HLH3490052288"},
		{"null island", 0, 0, 5, "31NAA6602100000"},
		{"oslo norway exception", 59.91, 10.75, 3, "32VNM978426"},
		{"svalbard exception", 78.22, 15.65, 3, "33XWG148830"},
		{"northern limit", 84, 0, 2, "31XDP6529"},
		{"southern limit", -80, 0, 2, "31CDM4116"},
		{"square only", 60.17, 24.94, 0, "35VLG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := Encode(tt.lat, tt.lon, tt.precision)
			require.True(t, ok)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestEncode_OutOfDomain(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"latitude too far south", -80.1, 10},
		{"latitude too far north", 84.1, 10},
		{"longitude too far west", 45, -180.5},
		{"longitude too far east", 45, 180.5},
		{"NaN latitude", math.NaN(), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := Encode(tt.lat, tt.lon, 5)
			assert.False(t, ok)
			assert.Empty(t, code)

			var encErr *EncodeError
			assert.True(t, errors.As(Check(tt.lat, tt.lon), &encErr))
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	first, ok := Encode(60.1699, 24.9384, 5)
	require.True(t, ok)
	for range 10 {
		again, ok := Encode(60.1699, 24.9384, 5)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestEncode_PrecisionClamped(t *testing.T) {
	high, ok := Encode(60.17, 24.94, 9)
	require.True(t, ok)
	assert.Equal(t, "35VLG8570072126", high)

	low, ok := Encode(60.17, 24.94, -3)
	require.True(t, ok)
	assert.Equal(t, "35VLG", low)
}

func TestEncodeOptional(t *testing.T) {
	_, ok := EncodeOptional(nil, ptr(24.94), 5)
	assert.False(t, ok, "absent latitude")

	_, ok = EncodeOptional(ptr(60.17), nil, 5)
	assert.False(t, ok, "absent longitude")

	code, ok := EncodeOptional(ptr(60.17), ptr(24.94), 1)
	require.True(t, ok)
	assert.Equal(t, "35VLG87", code)
}

func TestParse(t *testing.T) {
	c, err := Parse("35VLG8570072126")
	require.NoError(t, err)
	assert.Equal(t, 35, c.Zone)
	assert.Equal(t, byte('V'), c.Band)
	assert.Equal(t, "LG", c.Square)
	assert.Equal(t, "85700", c.Easting)
	assert.Equal(t, "72126", c.Northing)
	assert.Equal(t, 5, c.Precision())
	assert.Equal(t, "35VLG", c.Prefix())

	single, err := Parse("4QFJ1234")
	require.NoError(t, err)
	assert.Equal(t, 4, single.Zone)
	assert.Equal(t, "12", single.Easting)
}

func TestParse_Invalid(t *testing.T) {
	for _, code := range []string{
		"",
		"VLG123",
		"61VLG12",
		"35ILG12",
		"35VLG123",
		"35VLGAB",
		"35VZZ12",
		"35V",
	} {
		t.Run(code, func(t *testing.T) {
			_, err := Parse(code)
			var encErr *EncodeError
			require.ErrorAs(t, err, &encErr)
		})
	}
}

func TestShorten(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		precision int
		expected  string
	}{
		{"five to one", "35VLG8570072126", 1, "35VLG87"},
		{"five to two", "35VLG8570072126", 2, "35VLG8572"},
		{"to square", "35VLG8570072126", 0, "35VLG"},
		{"already shorter", "35VLG87", 3, "35VLG87"},
		{"same precision", "35VLG8572", 2, "35VLG8572"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Shorten(tt.code, tt.precision)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestShorten_Idempotent(t *testing.T) {
	code, ok := Encode(60.25, 24.99, 5)
	require.True(t, ok)

	once, err := Shorten(code, 2)
	require.NoError(t, err)
	twice, err := Shorten(once, 2)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestShorten_SameCellKeepsPrefix(t *testing.T) {
	// Three points inside the same 100 km square around Helsinki.
	points := [][2]float64{{60.17, 24.94}, {60.2, 24.95}, {60.25, 24.99}}

	var prefixes []string
	for _, p := range points {
		code, ok := Encode(p[0], p[1], 5)
		require.True(t, ok)
		short, err := Shorten(code, 0)
		require.NoError(t, err)
		prefixes = append(prefixes, short)
	}

	assert.Equal(t, []string{"35VLG", "35VLG", "35VLG"}, prefixes)
}

func TestShorten_InvalidCode(t *testing.T) {
	_, err := Shorten("not-a-code", 1)
	require.Error(t, err)
}
