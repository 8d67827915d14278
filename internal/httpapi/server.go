package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/corvid-labs/hindsight/internal/config"
	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/internal/observability"
	"github.com/corvid-labs/hindsight/pkg/log"
)

type Orchestrator interface {
	HandleTurn(ctx context.Context, sessionID, userText string) (core.TurnResult, error)
	History(ctx context.Context, sessionID string, limit int) ([]core.Turn, error)
	Drain(ctx context.Context) error
}

// Server exposes the turn pipeline over HTTP. It implements srv.Service.
type Server struct {
	cfg          *config.ServerConfig
	orchestrator Orchestrator
	httpServer   *http.Server
}

func New(cfg *config.ServerConfig, orchestrator Orchestrator) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/history", s.handleHistory)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.BindAddr,
		Handler: s.Router(),
		// Handlers read the logger from the request context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	log.FromCtx(ctx).Info().Str("addr", s.cfg.BindAddr).Msg("http server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return s.orchestrator.Drain(shutdownCtx)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

type chatResponse struct {
	SessionID       string               `json:"session_id"`
	ResponseText    string               `json:"response_text"`
	TemporalContext []core.Turn          `json:"temporal_context"`
	SemanticContext []core.SemanticMatch `json:"semantic_context"`
}

type historyResponse struct {
	SessionID string      `json:"session_id"`
	Turns     []core.Turn `json:"turns"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": core.Name,
		"version": core.Version,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "session_id is required")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "empty_prompt", "prompt must not be empty")
		return
	}

	result, err := s.orchestrator.HandleTurn(r.Context(), req.SessionID, req.Prompt)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Str("session", req.SessionID).Msg("turn failed")
		status, code, message := statusForError(err)
		respondError(w, status, code, message)
		return
	}

	temporal := result.Retrieved.TemporalTurns
	if temporal == nil {
		temporal = []core.Turn{}
	}
	semantic := result.Retrieved.SemanticMatches
	if semantic == nil {
		semantic = []core.SemanticMatch{}
	}

	respondJSON(w, http.StatusOK, chatResponse{
		SessionID:       req.SessionID,
		ResponseText:    result.ResponseText,
		TemporalContext: temporal,
		SemanticContext: semantic,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	turns, err := s.orchestrator.History(r.Context(), sessionID, limit)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Str("session", sessionID).Msg("history fetch failed")
		status, code, message := statusForError(err)
		respondError(w, status, code, message)
		return
	}
	if turns == nil {
		turns = []core.Turn{}
	}

	respondJSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Turns: turns})
}

// statusForError maps core sentinels to responses. Upstream and storage
// detail stays in the logs; the client gets a stable category.
func statusForError(err error) (int, string, string) {
	switch {
	case errors.Is(err, core.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_query", "query predicate rejected"
	case errors.Is(err, core.ErrGeneration), errors.Is(err, core.ErrProvider), errors.Is(err, core.ErrEmbedding):
		return http.StatusBadGateway, "generation_failed", "could not generate a response"
	case errors.Is(err, core.ErrStorage):
		return http.StatusInternalServerError, "storage_failed", "conversation storage is unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal error"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
