// Package httpapi exposes the moderator over HTTP: synchronous checks,
// session config, lexicon updates, the preview socket, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/whisper/moderation/internal/metrics"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/protocol"
	"github.com/whisper/moderation/internal/service"
)

// Moderator is the subset of service.Moderator the API serves.
type Moderator interface {
	Check(ctx context.Context, req protocol.CheckRequest) (protocol.CheckResponse, error)
	AddLexicon(ctx context.Context, callerID string, upd protocol.LexiconUpdate, broadcast bool) (int, error)
	SessionConfig(ctx context.Context, sessionID string) (moderation.Config, bool, error)
	PatchSessionConfig(ctx context.Context, sessionID string, patch moderation.ConfigPatch) (moderation.Config, error)
	SetSessionPreset(ctx context.Context, sessionID, preset string) (moderation.Config, error)
	ResetSessionConfig(ctx context.Context, sessionID string) error
	Status(ctx context.Context, sessionID string) (service.SessionStatus, error)
	Unmute(ctx context.Context, sessionID string) error
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server routes HTTP requests to the moderator.
type Server struct {
	mod       Moderator
	preview   http.HandlerFunc
	checks    map[string]HealthCheck
	startedAt time.Time
	log       *logrus.Entry
}

// NewServer creates the API. preview may be nil to disable the WebSocket
// preview endpoint.
func NewServer(mod Moderator, preview http.HandlerFunc, checks map[string]HealthCheck, log *logrus.Entry) *Server {
	return &Server{
		mod:       mod,
		preview:   preview,
		checks:    checks,
		startedAt: time.Now(),
		log:       log.WithField("component", "http"),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/moderate", s.handleModerate)
	mux.HandleFunc("GET /v1/presets", s.handlePresets)
	mux.HandleFunc("GET /v1/languages", s.handleLanguages)
	mux.HandleFunc("POST /v1/lexicon/{lang}", s.handleLexicon)
	mux.HandleFunc("GET /v1/sessions/{id}/config", s.handleGetConfig)
	mux.HandleFunc("PATCH /v1/sessions/{id}/config", s.handlePatchConfig)
	mux.HandleFunc("DELETE /v1/sessions/{id}/config", s.handleResetConfig)
	mux.HandleFunc("PUT /v1/sessions/{id}/preset/{level}", s.handleSetPreset)
	mux.HandleFunc("GET /v1/sessions/{id}/status", s.handleStatus)
	mux.HandleFunc("DELETE /v1/sessions/{id}/mute", s.handleUnmute)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.preview != nil {
		mux.HandleFunc("GET /ws/preview", s.preview)
	}
	return mux
}

func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	var req protocol.CheckRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.mod.Check(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	out := make(map[moderation.Level]moderation.Config, len(moderation.Levels))
	for _, level := range moderation.Levels {
		cfg, _ := moderation.Preset(level)
		out[level] = cfg
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Languages []string `json:"languages"`
		Words     int      `json:"words"`
	}{moderation.SupportedLanguages(), moderation.LexiconSize()})
}

func (s *Server) handleLexicon(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Words []string `json:"words"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	upd := protocol.LexiconUpdate{Language: r.PathValue("lang"), Words: body.Words}
	added, err := s.mod.AddLexicon(r.Context(), callerID(r), upd, true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Added int `json:"added"`
	}{added})
}

type sessionConfig struct {
	SessionID string            `json:"session_id"`
	Stored    bool              `json:"stored"`
	Config    moderation.Config `json:"config"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cfg, stored, err := s.mod.SessionConfig(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionConfig{SessionID: id, Stored: stored, Config: cfg})
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch moderation.ConfigPatch
	if !s.decode(w, r, &patch) {
		return
	}
	id := r.PathValue("id")
	cfg, err := s.mod.PatchSessionConfig(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionConfig{SessionID: id, Stored: true, Config: cfg})
}

func (s *Server) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.mod.ResetSessionConfig(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPreset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cfg, err := s.mod.SetSessionPreset(r.Context(), id, r.PathValue("level"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionConfig{SessionID: id, Stored: true, Config: cfg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.mod.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUnmute(w http.ResponseWriter, r *http.Request) {
	if err := s.mod.Unmute(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth runs every dependency check and reports 503 when any fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := struct {
		Status string            `json:"status"`
		Uptime string            `json:"uptime"`
		Checks map[string]string `json:"checks"`
	}{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
		Checks: make(map[string]string, len(s.checks)),
	}

	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{
			Code:    protocol.CodeInvalidRequest,
			Message: "malformed JSON body",
		})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, clientFault := service.ErrorCode(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, moderation.ErrUnknownPreset):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrRateLimited):
		status = http.StatusTooManyRequests
	case clientFault:
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if !clientFault {
		s.log.WithError(err).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, protocol.ErrorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// callerID identifies the lexicon caller for rate limiting.
func callerID(r *http.Request) string {
	if id := r.Header.Get("X-Caller-ID"); id != "" {
		return id
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
