package protocol

import (
	"time"

	"github.com/whisper/moderation/internal/moderation"
)

// CheckRequest is published to moderation.check (or POSTed to
// /v1/moderate) when a message needs review before delivery.
type CheckRequest struct {
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id"`
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	Ts        int64  `json:"ts"`
	// Preset overrides the session's stored config for this request only.
	Preset string `json:"preset,omitempty"`
}

// CheckResponse is the reply to a CheckRequest and is also published to
// moderation.result.<session>.
type CheckResponse struct {
	RequestID string            `json:"request_id"`
	SessionID string            `json:"session_id"`
	ChatID    string            `json:"chat_id"`
	Delivered bool              `json:"delivered"`
	Muted     bool              `json:"muted"`
	MutedFor  int               `json:"muted_for,omitempty"` // seconds
	Result    moderation.Result `json:"result"`
}

// NewCheckResponse builds the reply for req. A muted sender is never
// delivered, whatever the result says.
func NewCheckResponse(req CheckRequest, res moderation.Result, mutedFor time.Duration) CheckResponse {
	muted := mutedFor > 0
	return CheckResponse{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		ChatID:    req.ChatID,
		Delivered: res.IsAllowed && !muted,
		Muted:     muted,
		MutedFor:  int(mutedFor.Seconds()),
		Result:    res,
	}
}

// LexiconUpdate adds custom profanity for a language. It is accepted over
// HTTP and broadcast on moderation.lexicon so every instance converges.
type LexiconUpdate struct {
	Language string   `json:"language"`
	Words    []string `json:"words"`
	// Origin is the server name that first accepted the update.
	Origin string `json:"origin,omitempty"`
}

// ErrorResponse is the JSON body of every failed HTTP or NATS request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidText    = "invalid_text"
	CodeUnknownPreset  = "unknown_preset"
	CodeRateLimited    = "rate_limited"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal_error"
)
