// Package service ties the moderation engine to the session stores. It is
// transport-agnostic: NATS handlers, the HTTP API and the CLI all call the
// same Moderator.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/whisper/moderation/internal/audit"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/ratelimit"
)

var (
	ErrRateLimited    = errors.New("service: rate limited")
	ErrInvalidRequest = errors.New("service: invalid request")
	ErrInvalidText    = errors.New("service: invalid text")
)

// Limiter throttles actions per identifier.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// PrefsStore persists per-session moderation configs.
type PrefsStore interface {
	Get(ctx context.Context, sessionID string) (*moderation.Config, error)
	Save(ctx context.Context, sessionID string, cfg moderation.Config) error
	Patch(ctx context.Context, sessionID string, patch moderation.ConfigPatch, fallback moderation.Config) (moderation.Config, error)
	Delete(ctx context.Context, sessionID string) error
}

// StrikeStore counts blocked messages and mutes repeat offenders.
type StrikeStore interface {
	Record(ctx context.Context, sessionID, reason string) (time.Duration, error)
	IsMuted(ctx context.Context, sessionID string) (time.Duration, string, error)
	Count(ctx context.Context, sessionID string) (int, error)
	Clear(ctx context.Context, sessionID string) error
}

// AuditStore persists blocked attempts.
type AuditStore interface {
	Record(ctx context.Context, event *audit.Event) error
	CountRecent(ctx context.Context, sessionID string, window time.Duration) (int, error)
}

// LexiconStore persists custom profanity.
type LexiconStore interface {
	Add(ctx context.Context, language string, words []string) error
	LoadAll(ctx context.Context) (map[string][]string, error)
}

// Publisher fans results and lexicon changes out to other services.
type Publisher interface {
	PublishModerationResult(sessionID string, data []byte) error
	PublishLexiconUpdate(data []byte) error
}

// Deps are the Moderator's collaborators. Audit and Publisher are optional.
type Deps struct {
	Limiter   Limiter
	Prefs     PrefsStore
	Strikes   StrikeStore
	Lexicon   LexiconStore
	Audit     AuditStore
	Publisher Publisher
}

// Moderator runs moderation checks and manages session preferences.
type Moderator struct {
	deps       Deps
	engine     *moderation.Engine // default policy for sessions without prefs
	serverName string
	log        *logrus.Entry
}

// New creates a Moderator whose default policy is the given preset.
func New(deps Deps, defaultPreset moderation.Level, serverName string, log *logrus.Entry) (*Moderator, error) {
	if deps.Limiter == nil || deps.Prefs == nil || deps.Strikes == nil || deps.Lexicon == nil {
		return nil, errors.New("service: limiter, prefs, strikes and lexicon are required")
	}
	engine := moderation.NewEngine()
	if err := engine.SetPreset(defaultPreset); err != nil {
		return nil, fmt.Errorf("service: default preset: %w", err)
	}
	return &Moderator{
		deps:       deps,
		engine:     engine,
		serverName: serverName,
		log:        log.WithField("component", "moderator"),
	}, nil
}

// DefaultConfig returns the policy applied to sessions without stored prefs.
func (m *Moderator) DefaultConfig() moderation.Config {
	return m.engine.Config()
}

// resolveEngine picks the engine for a request: an explicit preset wins,
// then the session's stored prefs, then the default.
func (m *Moderator) resolveEngine(ctx context.Context, sessionID, preset string) (*moderation.Engine, error) {
	if preset != "" {
		level, err := moderation.ParseLevel(preset)
		if err != nil {
			return nil, err
		}
		cfg, _ := moderation.Preset(level)
		return moderation.NewEngineWithConfig(cfg), nil
	}

	cfg, err := m.deps.Prefs.Get(ctx, sessionID)
	if err != nil {
		m.log.WithError(err).WithField("session_id", sessionID).Warn("load prefs failed, using default config")
		return m.engine, nil
	}
	if cfg == nil {
		return m.engine, nil
	}
	return moderation.NewEngineWithConfig(*cfg), nil
}
