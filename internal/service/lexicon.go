package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/whisper/moderation/internal/metrics"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/protocol"
	"github.com/whisper/moderation/internal/ratelimit"
)

// AddLexicon adds custom profanity to this process, persists it and, when
// broadcast is set, tells every other instance. It returns how many words
// were new to this process.
func (m *Moderator) AddLexicon(ctx context.Context, callerID string, upd protocol.LexiconUpdate, broadcast bool) (int, error) {
	upd.Language = strings.ToLower(strings.TrimSpace(upd.Language))
	if upd.Language == "" || len(upd.Words) == 0 {
		return 0, fmt.Errorf("%w: language and words are required", ErrInvalidRequest)
	}
	if allowed, _ := m.deps.Limiter.Allow(ctx, callerID, ratelimit.RuleLexicon); !allowed {
		return 0, ErrRateLimited
	}

	added := moderation.AddCustomProfanity(upd.Language, upd.Words...)
	metrics.LexiconWords.Set(float64(moderation.LexiconSize()))

	if err := m.deps.Lexicon.Add(ctx, upd.Language, upd.Words); err != nil {
		return added, fmt.Errorf("service: persist lexicon: %w", err)
	}

	if broadcast && m.deps.Publisher != nil {
		upd.Origin = m.serverName
		data, err := json.Marshal(upd)
		if err != nil {
			return added, fmt.Errorf("service: marshal lexicon update: %w", err)
		}
		if err := m.deps.Publisher.PublishLexiconUpdate(data); err != nil {
			m.log.WithError(err).Warn("lexicon broadcast failed")
		}
	}

	m.log.WithField("language", upd.Language).WithField("added", added).Info("lexicon updated")
	return added, nil
}

// ApplyRemoteLexicon applies a broadcast from another instance. The
// originating instance already persisted it, and updates this instance sent
// itself are ignored.
func (m *Moderator) ApplyRemoteLexicon(data []byte) {
	var upd protocol.LexiconUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		m.log.WithError(err).Warn("failed to unmarshal lexicon update")
		return
	}
	if upd.Origin == m.serverName {
		return
	}
	added := moderation.AddCustomProfanity(upd.Language, upd.Words...)
	metrics.LexiconWords.Set(float64(moderation.LexiconSize()))
	m.log.WithField("language", upd.Language).WithField("origin", upd.Origin).WithField("added", added).Debug("remote lexicon applied")
}

// LoadLexicon replays persisted custom words into the process lexicon.
func (m *Moderator) LoadLexicon(ctx context.Context) (int, error) {
	all, err := m.deps.Lexicon.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for lang, words := range all {
		total += moderation.AddCustomProfanity(lang, words...)
	}
	metrics.LexiconWords.Set(float64(moderation.LexiconSize()))
	return total, nil
}
