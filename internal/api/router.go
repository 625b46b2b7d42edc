// Package api exposes the service's HTTP surface: the WebSocket interview
// endpoint and the rescoring endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-interview-service/internal/contract"
	"ai-interview-service/internal/observability"
	"ai-interview-service/internal/session"
)

// Handler serves the interview API.
type Handler struct {
	orchestrator *session.Orchestrator
	upgrader     websocket.Upgrader
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(orchestrator *session.Orchestrator) http.Handler {
	h := &Handler{
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// Browser clients connect from the hiring portal; origin policy
			// is enforced at the gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger())

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1/interviews", func(r chi.Router) {
		r.Get("/{candidateID}/ws", h.handleInterview)
		r.Post("/{sessionID}/score", h.handleRescore)
	})

	return r
}

// handleInterview upgrades the connection and runs one interview session over
// it. The connection is closed when the session ends.
func (h *Handler) handleInterview(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")
	if candidateID == "" {
		http.Error(w, "candidate id required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	transport := newWSTransport(conn)
	if err := h.orchestrator.Run(r.Context(), transport, candidateID); err != nil {
		log.Warn().Err(err).Str("candidateId", candidateID).Msg("Interview session ended with error")
	}
}

// handleRescore re-runs credibility scoring for a finished interview.
func (h *Handler) handleRescore(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	assessment, err := h.orchestrator.Rescore(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contract.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
