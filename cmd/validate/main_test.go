package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

const validDocument = `{
	"trackCount": 2,
	"generatedAt": "2026-10-15T12:00:00Z",
	"aircraft": [
		{"id":"radar-1","aircraftId":"4601f5","position":"35VLG87","altitude":"surface","speed":"fast","direction":87,"details":"FIN1, Finland","isExited":false,"type":"radar"},
		{"id":"marine-1","aircraftId":"230000001","position":null,"altitude":"surface","speed":"slow","direction":0,"details":"230000001, moored","isExited":false,"type":"marine"}
	]
}`

func TestRun_ValidDocument(t *testing.T) {
	var out bytes.Buffer
	code := run([]byte(validDocument), &out)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "Tracks: 2")
}

func TestRun_EmptySnapshot(t *testing.T) {
	var out bytes.Buffer
	code := run([]byte(`{"trackCount":0,"generatedAt":"1970-01-01T00:00:00Z","aircraft":[]}`), &out)

	assert.Equal(t, 0, code, out.String())
}

func TestRun_Violations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "count mismatch",
			doc:  `{"trackCount":3,"generatedAt":"2026-10-15T12:00:00Z","aircraft":[]}`,
			want: "trackCount 3 but 0 aircraft",
		},
		{
			name: "bad timestamp",
			doc:  `{"trackCount":0,"generatedAt":"yesterday","aircraft":[]}`,
			want: "is not RFC3339",
		},
		{
			name: "missing field",
			doc:  `{"trackCount":1,"generatedAt":"2026-10-15T12:00:00Z","aircraft":[{"id":"a","aircraftId":"b","altitude":"low","speed":"slow","direction":1,"details":"x","isExited":false,"type":"radar"}]}`,
			want: `missing "position"`,
		},
		{
			name: "unknown altitude",
			doc:  `{"trackCount":1,"generatedAt":"2026-10-15T12:00:00Z","aircraft":[{"id":"a","aircraftId":"b","position":null,"altitude":"orbit","speed":"slow","direction":1,"details":"x","isExited":false,"type":"radar"}]}`,
			want: `altitude "orbit"`,
		},
		{
			name: "direction out of range",
			doc:  `{"trackCount":1,"generatedAt":"2026-10-15T12:00:00Z","aircraft":[{"id":"a","aircraftId":"b","position":null,"altitude":"low","speed":"slow","direction":360,"details":"x","isExited":false,"type":"radar"}]}`,
			want: "direction 360 outside [0, 360)",
		},
		{
			name: "duplicate id",
			doc: `{"trackCount":2,"generatedAt":"2026-10-15T12:00:00Z","aircraft":[
				{"id":"a","aircraftId":"b","position":null,"altitude":"low","speed":"slow","direction":1,"details":"x","isExited":false,"type":"radar"},
				{"id":"a","aircraftId":"c","position":null,"altitude":"low","speed":"slow","direction":1,"details":"x","isExited":false,"type":"radar"}]}`,
			want: `id "a" repeats aircraft[0]`,
		},
		{
			name: "bad grid code",
			doc:  `{"trackCount":1,"generatedAt":"2026-10-15T12:00:00Z","aircraft":[{"id":"a","aircraftId":"b","position":"35VLG8","altitude":"low","speed":"slow","direction":1,"details":"x","isExited":false,"type":"radar"}]}`,
			want: "unbalanced easting/northing digits",
		},
		{
			name: "wrong field type",
			doc:  `{"trackCount":1,"generatedAt":"2026-10-15T12:00:00Z","aircraft":[{"id":"a","aircraftId":"b","position":null,"altitude":"low","speed":"slow","direction":"north","details":"x","isExited":false,"type":"radar"}]}`,
			want: "aircraft[0]:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := run([]byte(tt.doc), &out)

			assert.Equal(t, 1, code)
			assert.Contains(t, out.String(), tt.want)
			assert.Contains(t, out.String(), "Validation FAILED.")
		})
	}
}

func TestRun_NotJSON(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run([]byte("<html>"), &out))
	assert.Contains(t, out.String(), "FATAL")
}
