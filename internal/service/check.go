package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/whisper/moderation/internal/audit"
	"github.com/whisper/moderation/internal/metrics"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/protocol"
	"github.com/whisper/moderation/internal/ratelimit"
)

// Check moderates one outgoing message for a session. Blocked messages are
// audited and count as a strike against the sender; enough strikes mute
// the session and later messages are not delivered until the mute expires.
func (m *Moderator) Check(ctx context.Context, req protocol.CheckRequest) (protocol.CheckResponse, error) {
	if req.SessionID == "" {
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return protocol.CheckResponse{}, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	if err := protocol.ValidateText(req.Text); err != nil {
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return protocol.CheckResponse{}, fmt.Errorf("%w: %w", ErrInvalidText, err)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	// Limiter errors fail open; Allow already reports true for them.
	if allowed, _ := m.deps.Limiter.Allow(ctx, req.SessionID, ratelimit.RuleCheck); !allowed {
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeRateLimited).Inc()
		return protocol.CheckResponse{}, ErrRateLimited
	}

	log := m.log.WithField("session_id", req.SessionID).WithField("request_id", req.RequestID)

	mutedFor, _, err := m.deps.Strikes.IsMuted(ctx, req.SessionID)
	if err != nil {
		log.WithError(err).Warn("mute lookup failed, failing open")
		mutedFor = 0
	}

	engine, err := m.resolveEngine(ctx, req.SessionID, req.Preset)
	if err != nil {
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return protocol.CheckResponse{}, err
	}

	start := time.Now()
	res := engine.Moderate(req.Text)
	metrics.CheckLatency.Observe(time.Since(start).Seconds())
	for _, v := range res.Violations {
		metrics.ViolationsTotal.WithLabelValues(string(v.Category), string(v.Severity)).Inc()
	}

	if !res.IsAllowed {
		m.recordBlocked(ctx, req, res)
		if muted := m.recordStrike(ctx, req.SessionID, res); muted > mutedFor {
			mutedFor = muted
		}
	}

	resp := protocol.NewCheckResponse(req, res, mutedFor)
	switch {
	case resp.Muted:
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeMuted).Inc()
	case !res.IsAllowed:
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeBlocked).Inc()
	default:
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeDelivered).Inc()
	}

	if !resp.Delivered {
		log.WithField("categories", res.Categories()).WithField("muted_for", resp.MutedFor).Info("message held")
	} else {
		log.Debug("message clean")
	}
	return resp, nil
}

func (m *Moderator) recordBlocked(ctx context.Context, req protocol.CheckRequest, res moderation.Result) {
	if m.deps.Audit == nil {
		return
	}
	if err := m.deps.Audit.Record(ctx, audit.NewEvent(req.SessionID, req.ChatID, res)); err != nil {
		metrics.AuditFailures.Inc()
		m.log.WithError(err).WithField("session_id", req.SessionID).Warn("audit record failed")
	}
}

// recordStrike returns the mute applied by this strike, if any.
func (m *Moderator) recordStrike(ctx context.Context, sessionID string, res moderation.Result) time.Duration {
	reason := "blocked"
	for _, v := range res.Violations {
		if v.Severity == moderation.SeverityBlock {
			reason = string(v.Category)
			break
		}
	}

	muted, err := m.deps.Strikes.Record(ctx, sessionID, reason)
	if err != nil {
		m.log.WithError(err).WithField("session_id", sessionID).Warn("strike record failed")
		return 0
	}
	if muted > 0 {
		metrics.MutesTotal.Inc()
		m.log.WithField("session_id", sessionID).WithField("duration", muted.String()).Info("session muted")
	}
	return muted
}

// HandleCheckMessage is the NATS entry point. It decodes a CheckRequest,
// runs Check, publishes held messages to moderation.result.<session> and
// returns the reply payload (a CheckResponse or an ErrorResponse).
func (m *Moderator) HandleCheckMessage(ctx context.Context, data []byte) []byte {
	var req protocol.CheckRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.log.WithError(err).Warn("failed to unmarshal check request")
		return encodeError(protocol.CodeInvalidRequest, "malformed check request")
	}

	resp, err := m.Check(ctx, req)
	if err != nil {
		code, _ := ErrorCode(err)
		return encodeError(code, err.Error())
	}

	out, err := json.Marshal(resp)
	if err != nil {
		m.log.WithError(err).Error("failed to marshal check response")
		return encodeError(protocol.CodeInternal, "internal error")
	}

	if !resp.Delivered && m.deps.Publisher != nil {
		if err := m.deps.Publisher.PublishModerationResult(resp.SessionID, out); err != nil {
			m.log.WithError(err).WithField("session_id", resp.SessionID).Warn("failed to publish result")
		}
	}
	return out
}

// ErrorCode maps a service error to its wire code and whether it is the
// caller's fault.
func ErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrRateLimited):
		return protocol.CodeRateLimited, true
	case errors.Is(err, moderation.ErrUnknownPreset):
		return protocol.CodeUnknownPreset, true
	case errors.Is(err, ErrInvalidText):
		return protocol.CodeInvalidText, true
	case errors.Is(err, ErrInvalidRequest):
		return protocol.CodeInvalidRequest, true
	default:
		return protocol.CodeInternal, false
	}
}

func encodeError(code, message string) []byte {
	out, _ := json.Marshal(protocol.ErrorResponse{Code: code, Message: message})
	return out
}
