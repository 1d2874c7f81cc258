// Command validate checks a /radar/aircraft document against the read API
// wire contract: required fields, vocabularies, direction range, track count
// agreement, unique ids and grid code shape.
//
// Usage:
//
//	go run ./cmd/validate -url http://localhost:8080/radar/aircraft
//	go run ./cmd/validate -file snapshot.json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/geo"
	"github.com/goccy/go-json"
)

// requiredTrackFields are the keys every aircraft entry must carry, even
// when the value is null.
var requiredTrackFields = []string{"id", "aircraftId", "position", "altitude", "speed", "direction", "details", "isExited", "type"}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "path to a saved /radar/aircraft JSON document")
	url := flag.String("url", "", "URL of a running /radar/aircraft endpoint")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout for -url")
	flag.Parse()

	if (*file == "") == (*url == "") {
		flag.Usage()
		os.Exit(1)
	}

	body, err := load(*file, *url, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(body, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func load(file, url string, timeout time.Duration) ([]byte, error) {
	if file != "" {
		return os.ReadFile(file)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// document keeps each aircraft as raw fields so missing keys can be told
// apart from zero values.
type document struct {
	TrackCount  *int                         `json:"trackCount"`
	GeneratedAt *string                      `json:"generatedAt"`
	Aircraft    []map[string]json.RawMessage `json:"aircraft"`
}

func run(body []byte, out io.Writer) int {
	fmt.Fprintln(out, "=== Track Snapshot Contract Validation ===")
	fmt.Fprintln(out)

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		fmt.Fprintf(out, "FATAL: decode document: %v\n", err)
		return 1
	}

	tracks, decodeErrs := decodeTracks(doc.Aircraft)

	phases := []*phase{
		validateEnvelope(doc),
		validateFieldPresence(doc.Aircraft, decodeErrs),
		validateVocabulary(tracks),
		validateIdentifiers(tracks),
		validatePositions(tracks),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Tracks: %d\n", len(doc.Aircraft))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// indexedTrack remembers where a track sat in the document.
type indexedTrack struct {
	index int
	track domain.Track
}

func decodeTracks(raw []map[string]json.RawMessage) ([]indexedTrack, map[int]error) {
	tracks := make([]indexedTrack, 0, len(raw))
	errs := map[int]error{}
	for i, fields := range raw {
		data, err := json.Marshal(fields)
		if err != nil {
			errs[i] = err
			continue
		}
		var t domain.Track
		if err := json.Unmarshal(data, &t); err != nil {
			errs[i] = err
			continue
		}
		tracks = append(tracks, indexedTrack{index: i, track: t})
	}
	return tracks, errs
}

// ── Phases ──

func validateEnvelope(doc document) *phase {
	p := &phase{name: "Envelope (trackCount, generatedAt)"}

	switch {
	case doc.TrackCount == nil:
		p.errorf("trackCount is missing")
	case *doc.TrackCount != len(doc.Aircraft):
		p.errorf("trackCount %d but %d aircraft", *doc.TrackCount, len(doc.Aircraft))
	}

	switch {
	case doc.GeneratedAt == nil:
		p.errorf("generatedAt is missing")
	default:
		if _, err := time.Parse(time.RFC3339, *doc.GeneratedAt); err != nil {
			p.errorf("generatedAt %q is not RFC3339", *doc.GeneratedAt)
		}
	}

	if doc.Aircraft == nil {
		p.errorf("aircraft is missing or null")
	}
	return p
}

func validateFieldPresence(raw []map[string]json.RawMessage, decodeErrs map[int]error) *phase {
	p := &phase{name: "Field presence and types"}
	for i, fields := range raw {
		for _, key := range requiredTrackFields {
			if _, ok := fields[key]; !ok {
				p.errorf("aircraft[%d]: missing %q", i, key)
			}
		}
		if err, ok := decodeErrs[i]; ok {
			p.errorf("aircraft[%d]: %v", i, err)
		}
	}
	return p
}

func validateVocabulary(tracks []indexedTrack) *phase {
	p := &phase{name: "Vocabulary and ranges"}
	for _, it := range tracks {
		t := it.track
		switch t.Altitude {
		case domain.AltitudeSurface, domain.AltitudeLow, domain.AltitudeHigh, domain.AltitudeUnknown:
		default:
			p.errorf("aircraft[%d]: altitude %q", it.index, t.Altitude)
		}
		switch t.Speed {
		case domain.SpeedSlow, domain.SpeedFast, domain.SpeedSupersonic, domain.SpeedUnknown:
		default:
			p.errorf("aircraft[%d]: speed %q", it.index, t.Speed)
		}
		if !t.Source.Valid() {
			p.errorf("aircraft[%d]: type %q", it.index, t.Source)
		}
		if t.Direction < 0 || t.Direction >= 360 {
			p.errorf("aircraft[%d]: direction %d outside [0, 360)", it.index, t.Direction)
		}
		if t.Details == "" {
			p.errorf("aircraft[%d]: details is empty", it.index)
		}
	}
	return p
}

func validateIdentifiers(tracks []indexedTrack) *phase {
	p := &phase{name: "Identifiers"}
	seen := make(map[string]int, len(tracks))
	for _, it := range tracks {
		t := it.track
		if t.ID == "" {
			p.errorf("aircraft[%d]: id is empty", it.index)
		} else if first, ok := seen[t.ID]; ok {
			p.errorf("aircraft[%d]: id %q repeats aircraft[%d]", it.index, t.ID, first)
		} else {
			seen[t.ID] = it.index
		}
		if t.ExternalID == "" {
			p.errorf("aircraft[%d]: aircraftId is empty", it.index)
		}
	}
	return p
}

func validatePositions(tracks []indexedTrack) *phase {
	p := &phase{name: "Grid codes"}
	for _, it := range tracks {
		if it.track.Position == nil {
			continue
		}
		if _, err := geo.Parse(*it.track.Position); err != nil {
			p.errorf("aircraft[%d]: %v", it.index, err)
		}
	}
	return p
}
