package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lecternErrors "github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/logger"
	"github.com/lecternhq/lectern/internal/orchestrator"
	"github.com/lecternhq/lectern/internal/tool"

	"github.com/oklog/ulid/v2"
)

// Answerer is the slice of the kernel the API consumes.
type Answerer interface {
	Answer(ctx context.Context, sessionID, query string) (*orchestrator.Answer, error)
	DeleteSession(sessionID string) error
}

// CourseLister reports catalog contents for the analytics endpoint.
type CourseLister interface {
	ListCourseTitles() ([]string, error)
}

// Server exposes the query and catalog endpoints over HTTP.
type Server struct {
	kernel  Answerer
	courses CourseLister
	ready   func() bool
	server  *http.Server
}

type Options struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Ready reports whether the backing store is up. Nil means always ready.
	Ready func() bool
}

func NewServer(kernel Answerer, courses CourseLister, opts Options) *Server {
	mux := http.NewServeMux()
	s := &Server{
		kernel:  kernel,
		courses: courses,
		ready:   opts.Ready,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", opts.Port),
			Handler:      mux,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
	}

	mux.HandleFunc("/api/v1/query", s.handleQuery)
	mux.HandleFunc("/api/v1/courses", s.handleCourses)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessions)
	mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("Starting HTTP API server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string        `json:"answer"`
	Sources   []tool.Source `json:"sources"`
	SessionID string        `json:"session_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "Missing required field: query", http.StatusBadRequest)
		return
	}

	ctx := logger.WithTraceID(r.Context(), ulid.Make().String())

	answer, err := s.kernel.Answer(ctx, req.SessionID, req.Query)
	if err != nil {
		slog.Error("query failed", "trace_id", logger.GetTraceID(ctx), "error", err)
		if lecternErrors.IsCategory(err, lecternErrors.ErrEngineTransport) {
			http.Error(w, "Upstream engine unavailable", http.StatusBadGateway)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    answer.Text,
		Sources:   answer.Sources,
		SessionID: answer.SessionID,
	})
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	titles, err := s.courses.ListCourseTitles()
	if err != nil {
		slog.Error("failed to list courses", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, coursesResponse{
		TotalCourses: len(titles),
		CourseTitles: titles,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	if err := s.kernel.DeleteSession(sessionID); err != nil {
		slog.Error("failed to delete session", "session_id", sessionID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "session_id": sessionID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
