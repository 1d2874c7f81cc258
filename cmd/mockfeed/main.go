// Command mockfeed serves random traffic for local runs without upstream
// credentials. Point GENERATED_API_URL at /api/states and PRACTICE_API_URL at
// /api/craft.
//
// Usage:
//
//	go run ./cmd/mockfeed -addr :9000 -seed 42
package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed; a fixed seed repeats the same traffic")
	maxAircraft := flag.Int("max", 10, "maximum aircraft per response")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(newFeed(*seed, *maxAircraft), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("mock feed listening", "addr", *addr, "seed", *seed)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("mock feed stopped", "error", err)
		os.Exit(1)
	}
}

func newRouter(f *feed, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/states", func(w http.ResponseWriter, _ *http.Request) {
		resp, err := f.states(time.Now())
		if err != nil {
			logger.Error("generate states", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, resp, logger)
	})
	r.Get("/api/craft", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, f.craft(), logger)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "error", err)
	}
}
