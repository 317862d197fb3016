package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/orchestrator"
)

var validate = validator.New()

// analyzeRequest mirrors the analyze capability's request shape (spec §6):
// url and timestamp required, content and keywords optional. Finiteness of
// Timestamp isn't expressible as a validator tag, so handleAnalyze checks
// it separately.
type analyzeRequest struct {
	URL       string   `json:"url" validate:"required"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Keywords  []string `json:"keywords"`
	Timestamp float64  `json:"timestamp" validate:"required"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, core.NewValidationError("body", "malformed JSON"))
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, core.NewValidationError("url", "must not be empty"))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, core.NewValidationError("timestamp", "must be non-zero"))
		return
	}
	if math.IsNaN(req.Timestamp) || math.IsInf(req.Timestamp, 0) {
		writeError(w, http.StatusBadRequest, core.NewValidationError("timestamp", "must be finite"))
		return
	}

	err := s.orch.Submit(orchestrator.Visit{
		URL:              req.URL,
		Title:            req.Title,
		Text:             req.Content,
		Timestamp:        req.Timestamp,
		ExternalKeywords: req.Keywords,
	})
	if err != nil {
		if err == orchestrator.ErrDebounced {
			writeJSON(w, http.StatusAccepted, map[string]bool{"debounced": true})
			return
		}
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.orch.GetContext()
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	limit := 0 // unbounded
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, core.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.orch.GetGraph(limit))
}

func (s *Server) handleResetGraph(w http.ResponseWriter, r *http.Request) {
	s.orch.ResetGraph()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetStats())
}

func (s *Server) handleGetPipelineEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.orch.GetPipelineEvents()})
}

type chatRequest struct {
	Query string `json:"query" validate:"required"`
}

func (s *Server) handleChatContext(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, core.NewValidationError("body", "malformed JSON"))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, core.NewValidationError("query", "must not be empty"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	doc, ok := s.orch.ChatContext(ctx)
	if !ok {
		writeError(w, http.StatusConflict, core.NewValidationError("chat_context", "no published context yet"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"context_document": doc,
		"query":            req.Query,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
