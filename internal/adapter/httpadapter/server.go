package httpadapter

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource returns the snapshot currently being served.
type SnapshotSource interface {
	Current() domain.Snapshot
}

// Server exposes the read API alongside health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /radar/aircraft and /radar/sources routes.
func NewServer(addr string, snapshots SnapshotSource, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		logger:    logger,
	}

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/radar", func(r chi.Router) {
		r.Get("/aircraft", s.handleAircraft)
		r.Get("/sources", s.handleSources)
	})

	return s
}

// handleAircraft serves the current snapshot, optionally restricted to one
// source with ?type=.
func (s *Server) handleAircraft(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()

	if raw := r.URL.Query().Get("type"); raw != "" {
		source := domain.SourceType(strings.ToLower(raw))
		if !source.Valid() {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown type " + raw})
			return
		}
		snap.Tracks = slices.DeleteFunc(slices.Clone(snap.Tracks), func(t domain.Track) bool {
			return t.Source != source
		})
	}

	s.writeJSON(w, http.StatusOK, domain.NewSnapshotView(snap))
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshots.Current()
	s.writeJSON(w, http.StatusOK, snap.SourceStatus)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

// UseTLS serves over TLS with the given config, which must carry the
// server certificate. See NewMTLSConfig.
func (s *Server) UseTLS(cfg *tls.Config) {
	s.httpServer.TLSConfig = cfg
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	if s.httpServer.TLSConfig != nil {
		s.logger.Info("http server starting", "addr", s.httpServer.Addr, "tls", true)
		return s.httpServer.ListenAndServeTLS("", "")
	}
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
