// Package server exposes a read-only HTTP view of a running session:
// job readiness, outcomes, and session progress. It never mutates
// session state; the runner remains the single writer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/relialab/checkrun/internal/errors"
	"github.com/relialab/checkrun/internal/observability"
	"github.com/relialab/checkrun/internal/server/middleware"
)

// Version is reported by the /version endpoint. Overridden at build
// time via -ldflags.
var Version = "dev"

// JobSnapshot is the wire representation of one job's state.
type JobSnapshot struct {
	ID         string   `json:"id"`
	Summary    string   `json:"summary,omitempty"`
	Plugin     string   `json:"plugin"`
	Category   string   `json:"category"`
	Selected   bool     `json:"selected"`
	CanStart   bool     `json:"can_start"`
	Outcome    string   `json:"outcome,omitempty"`
	Readiness  string   `json:"readiness"`
	Inhibitors []string `json:"inhibitors,omitempty"`
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title,omitempty"`
	Jobs      []JobSnapshot `json:"jobs"`
}

// SnapshotSource returns the current session snapshot. Implementations
// must be safe for concurrent calls; the serve command publishes
// snapshots through an atomic value for this reason.
type SnapshotSource func() Snapshot

// Server serves the session API over HTTP.
type Server struct {
	host   string
	port   int
	router chi.Router
	source SnapshotSource
}

// New builds a server for the given bind address and snapshot source.
// A nil source yields an empty snapshot on every request.
func New(host string, port int, source SnapshotSource) *Server {
	if source == nil {
		source = func() Snapshot { return Snapshot{} }
	}
	s := &Server{host: host, port: port, source: source}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the bind address in host:port form.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("no route for %s", req.URL.Path),
			middleware.RequestIDFromContext(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("%s not allowed on %s", req.Method, req.URL.Path),
			middleware.RequestIDFromContext(req.Context()))
	})

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/jobs", s.handleJobs)
		// Job ids may contain slashes, so the route is a wildcard.
		r.Get("/jobs/*", s.handleJob)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	snap := s.source()
	var selected, started, ready int
	for _, j := range snap.Jobs {
		if j.Selected {
			selected++
		}
		if j.Outcome != "" {
			started++
		}
		if j.CanStart {
			ready++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": snap.SessionID,
		"title":      snap.Title,
		"jobs":       len(snap.Jobs),
		"selected":   selected,
		"started":    started,
		"ready":      ready,
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	snap := s.source()
	if snap.Jobs == nil {
		snap.Jobs = []JobSnapshot{}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJob(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "*")
	snap := s.source()
	for _, j := range snap.Jobs {
		if j.ID == id {
			writeJSON(w, http.StatusOK, j)
			return
		}
	}
	apperrors.WriteHTTPError(w, http.StatusNotFound, "JOB_NOT_FOUND",
		fmt.Sprintf("job %q is not part of this session", id),
		middleware.RequestIDFromContext(req.Context()))
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, readTimeout, writeTimeout, idleTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("API server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
