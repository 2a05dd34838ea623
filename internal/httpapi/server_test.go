package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/moderation/internal/logger"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/protocol"
	"github.com/whisper/moderation/internal/service"
)

// stubModerator runs the real engine with the default config and keeps
// session configs in memory.
type stubModerator struct {
	cfgs    map[string]moderation.Config
	checkFn func(protocol.CheckRequest) (protocol.CheckResponse, error)
	lexicon []protocol.LexiconUpdate
	caller  string
	unmuted []string
}

func newStub() *stubModerator {
	return &stubModerator{cfgs: make(map[string]moderation.Config)}
}

func (m *stubModerator) Check(_ context.Context, req protocol.CheckRequest) (protocol.CheckResponse, error) {
	if m.checkFn != nil {
		return m.checkFn(req)
	}
	res := moderation.NewEngine().Moderate(req.Text)
	return protocol.NewCheckResponse(req, res, 0), nil
}

func (m *stubModerator) AddLexicon(_ context.Context, caller string, upd protocol.LexiconUpdate, _ bool) (int, error) {
	if len(upd.Words) == 0 {
		return 0, service.ErrInvalidRequest
	}
	m.caller = caller
	m.lexicon = append(m.lexicon, upd)
	return len(upd.Words), nil
}

func (m *stubModerator) SessionConfig(_ context.Context, id string) (moderation.Config, bool, error) {
	cfg, ok := m.cfgs[id]
	if !ok {
		return moderation.DefaultConfig(), false, nil
	}
	return cfg, true, nil
}

func (m *stubModerator) PatchSessionConfig(ctx context.Context, id string, patch moderation.ConfigPatch) (moderation.Config, error) {
	cfg, _, _ := m.SessionConfig(ctx, id)
	cfg = patch.Apply(cfg)
	m.cfgs[id] = cfg
	return cfg, nil
}

func (m *stubModerator) SetSessionPreset(_ context.Context, id, preset string) (moderation.Config, error) {
	level, err := moderation.ParseLevel(preset)
	if err != nil {
		return moderation.Config{}, err
	}
	cfg, _ := moderation.Preset(level)
	m.cfgs[id] = cfg
	return cfg, nil
}

func (m *stubModerator) ResetSessionConfig(_ context.Context, id string) error {
	delete(m.cfgs, id)
	return nil
}

func (m *stubModerator) Status(_ context.Context, id string) (service.SessionStatus, error) {
	return service.SessionStatus{SessionID: id, Strikes: 2, BlockedLastDay: -1}, nil
}

func (m *stubModerator) Unmute(_ context.Context, id string) error {
	m.unmuted = append(m.unmuted, id)
	return nil
}

func newAPI(t *testing.T, mod Moderator, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	return NewServer(mod, nil, checks, logger.Discard()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) protocol.ErrorResponse {
	t.Helper()
	var er protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	return er
}

func TestModerate(t *testing.T) {
	h := newAPI(t, newStub(), nil)

	w := do(t, h, http.MethodPost, "/v1/moderate", `{"session_id":"s1","text":"Call me at 9876543210"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp protocol.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Delivered)
	assert.False(t, resp.Result.IsAllowed)
}

func TestModerate_MalformedBody(t *testing.T) {
	h := newAPI(t, newStub(), nil)

	w := do(t, h, http.MethodPost, "/v1/moderate", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, protocol.CodeInvalidRequest, decodeError(t, w).Code)
}

func TestModerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rate limited", service.ErrRateLimited, http.StatusTooManyRequests, protocol.CodeRateLimited},
		{"invalid text", service.ErrInvalidText, http.StatusBadRequest, protocol.CodeInvalidText},
		{"invalid request", service.ErrInvalidRequest, http.StatusBadRequest, protocol.CodeInvalidRequest},
		{"unknown preset", moderation.ErrUnknownPreset, http.StatusNotFound, protocol.CodeUnknownPreset},
		{"internal", errors.New("redis exploded"), http.StatusInternalServerError, protocol.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			stub.checkFn = func(protocol.CheckRequest) (protocol.CheckResponse, error) { return protocol.CheckResponse{}, tt.err }
			w := do(t, newAPI(t, stub, nil), http.MethodPost, "/v1/moderate", `{"session_id":"s1","text":"hi"}`)
			assert.Equal(t, tt.status, w.Code)
			er := decodeError(t, w)
			assert.Equal(t, tt.code, er.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", er.Message)
			}
		})
	}
}

func TestPresetsAndLanguages(t *testing.T) {
	h := newAPI(t, newStub(), nil)

	w := do(t, h, http.MethodGet, "/v1/presets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var presets map[string]moderation.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &presets))
	assert.Len(t, presets, 3)
	assert.True(t, presets["strict"].BlockPhysicalAddresses)
	assert.False(t, presets["lenient"].EnableProfanityFilter)

	w = do(t, h, http.MethodGet, "/v1/languages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var langs struct {
		Languages []string `json:"languages"`
		Words     int      `json:"words"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &langs))
	assert.Contains(t, langs.Languages, "en")
	assert.Positive(t, langs.Words)
}

func TestLexicon(t *testing.T) {
	stub := newStub()
	h := newAPI(t, stub, nil)

	r := httptest.NewRequest(http.MethodPost, "/v1/lexicon/en", strings.NewReader(`{"words":["foo","bar"]}`))
	r.Header.Set("X-Caller-ID", "admin-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"added":2}`, w.Body.String())
	require.Len(t, stub.lexicon, 1)
	assert.Equal(t, "en", stub.lexicon[0].Language)
	assert.Equal(t, "admin-1", stub.caller)

	w = do(t, h, http.MethodPost, "/v1/lexicon/en", `{"words":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionConfigRoutes(t *testing.T) {
	stub := newStub()
	h := newAPI(t, stub, nil)

	var sc sessionConfig
	w := do(t, h, http.MethodGet, "/v1/sessions/s1/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sc))
	assert.False(t, sc.Stored)
	assert.Equal(t, "s1", sc.SessionID)

	w = do(t, h, http.MethodPatch, "/v1/sessions/s1/config", `{"blockLinks":false,"profanityLanguages":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sc))
	assert.False(t, sc.Config.BlockLinks)
	assert.Empty(t, sc.Config.ProfanityLanguages)
	assert.True(t, sc.Config.BlockEmails)

	w = do(t, h, http.MethodPut, "/v1/sessions/s1/preset/strict", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sc))
	assert.Equal(t, moderation.LevelStrict, sc.Config.ModerationLevel)

	w = do(t, h, http.MethodPut, "/v1/sessions/s1/preset/paranoid", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, protocol.CodeUnknownPreset, decodeError(t, w).Code)

	w = do(t, h, http.MethodDelete, "/v1/sessions/s1/config", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, stub.cfgs, "s1")
}

func TestStatusAndUnmute(t *testing.T) {
	stub := newStub()
	h := newAPI(t, stub, nil)

	w := do(t, h, http.MethodGet, "/v1/sessions/s7/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st service.SessionStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 2, st.Strikes)
	assert.Equal(t, -1, st.BlockedLastDay)

	w = do(t, h, http.MethodDelete, "/v1/sessions/s7/mute", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"s7"}, stub.unmuted)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newAPI(t, newStub(), nil)
	w := do(t, h, http.MethodGet, "/v1/moderate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newAPI(t, newStub(), map[string]HealthCheck{
			"redis": func(context.Context) error { return nil },
		})
		w := do(t, h, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"redis":"ok"`)
	})

	t.Run("degraded", func(t *testing.T) {
		h := newAPI(t, newStub(), map[string]HealthCheck{
			"redis": func(context.Context) error { return nil },
			"nats":  func(context.Context) error { return errors.New("disconnected") },
		})
		w := do(t, h, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"degraded"`)
		assert.Contains(t, w.Body.String(), `"nats":"disconnected"`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	h := newAPI(t, newStub(), nil)
	w := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "whisper_moderation_lexicon_words")
}

func TestCallerID(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.1.1.1:9000"
	assert.Equal(t, "10.1.1.1", callerID(r))
	r.Header.Set("X-Forwarded-For", "198.51.100.2, 10.1.1.1")
	assert.Equal(t, "198.51.100.2", callerID(r))
	r.Header.Set("X-Caller-ID", "ops")
	assert.Equal(t, "ops", callerID(r))
}
