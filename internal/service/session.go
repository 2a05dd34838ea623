package service

import (
	"context"
	"fmt"
	"time"

	"github.com/whisper/moderation/internal/moderation"
)

// SessionConfig returns a session's effective config and whether it was
// stored explicitly.
func (m *Moderator) SessionConfig(ctx context.Context, sessionID string) (moderation.Config, bool, error) {
	cfg, err := m.deps.Prefs.Get(ctx, sessionID)
	if err != nil {
		return moderation.Config{}, false, err
	}
	if cfg == nil {
		return m.engine.Config(), false, nil
	}
	return *cfg, true, nil
}

// PatchSessionConfig merges patch over the session's effective config.
func (m *Moderator) PatchSessionConfig(ctx context.Context, sessionID string, patch moderation.ConfigPatch) (moderation.Config, error) {
	return m.deps.Prefs.Patch(ctx, sessionID, patch, m.engine.Config())
}

// SetSessionPreset stores a built-in preset for the session.
func (m *Moderator) SetSessionPreset(ctx context.Context, sessionID, preset string) (moderation.Config, error) {
	level, err := moderation.ParseLevel(preset)
	if err != nil {
		return moderation.Config{}, err
	}
	cfg, _ := moderation.Preset(level)
	if err := m.deps.Prefs.Save(ctx, sessionID, cfg); err != nil {
		return moderation.Config{}, err
	}
	return cfg, nil
}

// ResetSessionConfig drops stored prefs so the default applies again.
func (m *Moderator) ResetSessionConfig(ctx context.Context, sessionID string) error {
	return m.deps.Prefs.Delete(ctx, sessionID)
}

// SessionStatus summarises a session's standing.
type SessionStatus struct {
	SessionID  string `json:"session_id"`
	Strikes    int    `json:"strikes"`
	MutedFor   int    `json:"muted_for"` // seconds
	MuteReason string `json:"mute_reason,omitempty"`
	// BlockedLastDay is -1 when auditing is disabled.
	BlockedLastDay int `json:"blocked_last_day"`
}

// Status reports strikes, mute and recent blocked attempts for a session.
func (m *Moderator) Status(ctx context.Context, sessionID string) (SessionStatus, error) {
	st := SessionStatus{SessionID: sessionID, BlockedLastDay: -1}

	strikes, err := m.deps.Strikes.Count(ctx, sessionID)
	if err != nil {
		return st, fmt.Errorf("service: strikes: %w", err)
	}
	st.Strikes = strikes

	mutedFor, reason, err := m.deps.Strikes.IsMuted(ctx, sessionID)
	if err != nil {
		return st, fmt.Errorf("service: mute: %w", err)
	}
	st.MutedFor = int(mutedFor.Seconds())
	st.MuteReason = reason

	if m.deps.Audit != nil {
		n, err := m.deps.Audit.CountRecent(ctx, sessionID, 24*time.Hour)
		if err != nil {
			return st, fmt.Errorf("service: audit: %w", err)
		}
		st.BlockedLastDay = n
	}
	return st, nil
}

// Unmute clears strikes and any active mute for a session.
func (m *Moderator) Unmute(ctx context.Context, sessionID string) error {
	return m.deps.Strikes.Clear(ctx, sessionID)
}
