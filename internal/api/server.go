package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/arbor/internal/branch"
	"github.com/MikeSquared-Agency/arbor/internal/library"
)

type Server struct {
	router   *chi.Mux
	port     int
	lib      *library.Library
	apiToken string
	http     *http.Server
}

func NewServer(port int, lib *library.Library, apiToken string) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		lib:      lib,
		apiToken: apiToken,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/arbor/status", s.status)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1/conversations", func(r chi.Router) {
		r.Get("/", s.listConversations)
		r.Get("/{id}", s.getConversation)
		r.Post("/{id}/branches/{nodeID}/{direction}", s.moveBranch)
	})
	router.With(BearerAuthMiddleware(apiToken)).Post("/api/v1/archive/reload", s.reloadArchive)

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// BearerAuthMiddleware rejects requests without the configured token. An
// empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":         "arbor",
		"status":        "ready",
		"archive":       s.lib.Source(),
		"conversations": len(s.lib.List()),
	})
}

// writeJSON encodes v before writing the header so an encoding failure can
// still be reported as a 500.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		code = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// statusFor maps library and branch errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, branch.ErrUnknownDirection):
		return http.StatusBadRequest
	case errors.Is(err, branch.ErrNotOnPath):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
