package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hyperjump/semcache/internal/embedding"
	"github.com/hyperjump/semcache/internal/generation"
	"github.com/hyperjump/semcache/internal/models"
	"github.com/hyperjump/semcache/internal/policy"
	"github.com/hyperjump/semcache/internal/responder"
	"github.com/hyperjump/semcache/internal/session"
	"github.com/hyperjump/semcache/internal/storage"
	"github.com/hyperjump/semcache/internal/vector"
	"go.uber.org/zap"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	s.logger.Debug("chat request", zap.String("session_id", req.SessionID), zap.Bool("use_cache", req.CacheEnabled()))

	out, err := s.responder.Respond(r.Context(), responder.Request{
		SessionID: req.SessionID,
		Text:      req.Text,
		Metadata:  s.metadata(req.Metadata),
		UseCache:  req.CacheEnabled(),
	})
	if err != nil {
		s.respondFailure(w, "chat", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{
		SessionID:  req.SessionID,
		Response:   out.Response,
		CacheHit:   out.CacheHit,
		Similarity: out.Similarity,
		LatencyMS:  out.LatencyMS,
		LLMCalled:  out.LLMCalled,
		Context:    out.Context,
	})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req models.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.cache.Lookup(r.Context(), req.Metadata, req.Context)
	if err != nil {
		s.respondFailure(w, "lookup", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req models.EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var vec []float32
	if len(req.Vector) > 0 {
		vec = req.Vector
	}
	id, err := s.cache.Insert(r.Context(), req.Metadata, req.Context, req.Response, vec)
	if err != nil {
		s.respondFailure(w, "insert", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := session.ParseRole(req.Role)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions := s.responder.Sessions()
	sessions.Append(id, role, req.Text)
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"turns":      len(sessions.History(id)),
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	window := s.config.Session.WindowK
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "window must be a non-negative integer")
			return
		}
		window = n
	}
	text := r.URL.Query().Get("text")
	s.respondJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"context":    s.responder.Sessions().BuildContext(id, text, window),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"index":          s.cache.Stats(),
		"threshold":      s.cache.Policy().Threshold(),
		"required_keys":  s.cache.Policy().RequiredKeys(),
		"sessions":       s.responder.Sessions().Sessions(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"config": map[string]any{
			"embedding_provider":  s.config.Embedding.Provider,
			"embedding_model":     s.config.Embedding.Model,
			"generation_provider": s.config.Generation.Provider,
			"generation_model":    s.config.Generation.Model,
			"top_k":               s.config.Cache.TopK,
			"window_k":            s.config.Session.WindowK,
			"system_hash":         s.config.Cache.SystemHash,
		},
	}
	if s.records != nil {
		n, err := s.records.CountRecords(r.Context())
		if err != nil {
			s.logger.Error("status: count records failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "failed to count records")
			return
		}
		resp["records"] = n
		if diskBytes, err := storage.DiskUsageBytes(storage.SQLiteFiles(s.config.Storage.DatabasePath)...); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// metadata fills the default model_id and system_hash for keys the caller omitted.
func (s *Server) metadata(in map[string]string) map[string]string {
	out := map[string]string{
		policy.KeyModelID:    s.config.Generation.Model,
		policy.KeySystemHash: s.config.Cache.SystemHash,
	}
	for k, v := range in {
		out[k] = v
	}
	return out
}

// respondFailure logs err and answers with a fixed message per status. Upstream
// error text may carry provider URLs or credentials and never reaches the client.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status, message := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, embedding.ErrEmbeddingUnavailable):
		status, message = http.StatusServiceUnavailable, embedding.ErrEmbeddingUnavailable.Error()
	case errors.Is(err, generation.ErrGenerationUnavailable):
		status, message = http.StatusServiceUnavailable, generation.ErrGenerationUnavailable.Error()
	case errors.Is(err, vector.ErrDimensionMismatch):
		status, message = http.StatusUnprocessableEntity, vector.ErrDimensionMismatch.Error()
	}
	s.logger.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	s.respondError(w, status, message)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
