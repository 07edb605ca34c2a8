package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/arbor/internal/branch"
	"github.com/MikeSquared-Agency/arbor/internal/library"
)

// ReloadRequest is the optional body of POST /api/v1/archive/reload. An empty
// path reloads the current archive.
type ReloadRequest struct {
	Path string `json:"path,omitempty"`
}

// ListResponse wraps the conversation summaries.
type ListResponse struct {
	Conversations []library.Summary `json:"conversations"`
	Count         int               `json:"count"`
}

// listConversations handles GET /api/v1/conversations
func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	list := s.lib.List()
	writeJSON(w, http.StatusOK, ListResponse{Conversations: list, Count: len(list)})
}

// getConversation handles GET /api/v1/conversations/{id}
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	v, err := s.lib.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// moveBranch handles POST /api/v1/conversations/{id}/branches/{nodeID}/{direction}
func (s *Server) moveBranch(w http.ResponseWriter, r *http.Request) {
	dir, err := branch.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := s.lib.MoveBranch(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "nodeID"), dir)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// reloadArchive handles POST /api/v1/archive/reload
func (s *Server) reloadArchive(w http.ResponseWriter, r *http.Request) {
	var req ReloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	path := req.Path
	if path == "" {
		path = s.lib.Source()
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, errors.New("no archive path configured"))
		return
	}

	evt, err := s.lib.Load(r.Context(), path)
	if err != nil {
		slog.Warn("archive reload failed", "path", path, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}
