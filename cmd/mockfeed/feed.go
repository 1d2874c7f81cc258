package main

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/adapter/generated"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/geo"
	"github.com/goccy/go-json"
)

// Area the generated traffic is scattered over.
const (
	latMin, latMax = 59.5, 70.0
	lonMin, lonMax = 19.5, 31.5
)

var (
	craftDetails = []string{"Jet", "Propeller", "Helicopter"}
	altitudes    = []domain.AltitudeBand{domain.AltitudeSurface, domain.AltitudeLow, domain.AltitudeHigh}
	speeds       = []domain.SpeedBand{domain.SpeedSlow, domain.SpeedFast, domain.SpeedSupersonic}
)

// feed produces random traffic. A fixed seed yields the same sequence of
// responses.
type feed struct {
	mu  sync.Mutex
	rng *rand.Rand
	max int
}

func newFeed(seed uint64, maxAircraft int) *feed {
	return &feed{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), max: max(maxAircraft, 1)}
}

func (f *feed) count() int { return 1 + f.rng.IntN(f.max) }

func (f *feed) between(lo, hi float64) float64 { return lo + f.rng.Float64()*(hi-lo) }

// states returns one generated-source response stamped at now. Each state
// is [id, time, speed m/s, altitude m, lon, lat, heading, details, exited].
func (f *feed) states(now time.Time) (generated.StatesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.count()
	resp := generated.StatesResponse{Time: now.Unix(), States: make([]json.RawMessage, 0, n)}
	for range n {
		state := []any{
			fmt.Sprintf("%05d", 10000+f.rng.IntN(90000)),
			now.Unix(),
			f.between(50, 350),
			f.between(0, 12000),
			f.between(lonMin, lonMax),
			f.between(latMin, latMax),
			float64(f.rng.IntN(360)),
			craftDetails[f.rng.IntN(len(craftDetails))],
			f.rng.IntN(10) == 0,
		}
		raw, err := json.Marshal(state)
		if err != nil {
			return generated.StatesResponse{}, fmt.Errorf("marshal state: %w", err)
		}
		resp.States = append(resp.States, raw)
	}
	return resp, nil
}

// craft returns already-classified aircraft for the practice source.
func (f *feed) craft() []domain.PracticeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.count()
	out := make([]domain.PracticeRecord, 0, n)
	for i := range n {
		position, _ := geo.Encode(f.between(latMin, latMax), f.between(lonMin, lonMax), 2)
		direction := float64(f.rng.IntN(360))
		out = append(out, domain.PracticeRecord{
			ID:         i + 1,
			AircraftID: fmt.Sprintf("%05d", 10000+f.rng.IntN(90000)),
			Position:   position,
			Altitude:   string(altitudes[f.rng.IntN(len(altitudes))]),
			Speed:      string(speeds[f.rng.IntN(len(speeds))]),
			Direction:  &direction,
			Details:    craftDetails[f.rng.IntN(len(craftDetails))],
		})
	}
	return out
}
