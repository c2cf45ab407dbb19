// Package httpapi exposes the learning service over HTTP and WebSocket.
package httpapi

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-path/internal/help"
	"github.com/p-n-ai/pai-path/internal/learning"
)

const readyTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config wires a Server.
type Config struct {
	Service *learning.Service
	Help    *help.Assistant // optional; help routes answer 503 without it
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]HealthCheck
}

// Server holds the HTTP handlers.
type Server struct {
	svc      *learning.Service
	help     *help.Assistant
	checks   map[string]HealthCheck
	validate *validator.Validate
}

// New creates a Server.
func New(cfg Config) *Server {
	return &Server{
		svc:      cfg.Service,
		help:     cfg.Help,
		checks:   cfg.Checks,
		validate: newValidator(),
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.Mux())
}

// Mux creates the HTTP router.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/paths", s.handleCreatePath)
	mux.HandleFunc("GET /api/paths", s.handleListPaths)
	mux.HandleFunc("GET /api/paths/{id}", s.handleGetPath)
	mux.HandleFunc("DELETE /api/paths/{id}", s.handleDeletePath)
	mux.HandleFunc("POST /api/paths/{id}/pause", s.handlePausePath)
	mux.HandleFunc("POST /api/paths/{id}/resume", s.handleResumePath)
	mux.HandleFunc("GET /api/paths/{id}/progress", s.handleProgress)
	mux.HandleFunc("GET /api/paths/{id}/topics", s.handleTopics)
	mux.HandleFunc("GET /api/paths/{id}/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/paths/{id}/report.xlsx", s.handleReport)

	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /api/tasks/{id}/resources", s.handleTaskResources)
	mux.HandleFunc("POST /api/assignments/{id}/submit", s.handleSubmit)

	mux.HandleFunc("POST /api/help", s.handleHelp)
	mux.HandleFunc("GET /ws/help", s.handleHelpSocket)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := readyResponse{Status: "ready"}
	status := http.StatusOK
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := s.checks[name](ctx); err != nil {
				slog.Warn("readiness check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrade reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
