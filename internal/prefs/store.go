// Package prefs persists per-session moderation preferences in Redis. Each
// session's config is a hash with one field per toggle:
//
//	Key:    modprefs:<session_id>
//	Fields: blockNumbers, blockEmails, ... = "1" | "0"
//	        profanityLanguages = comma-separated codes
//	        moderationLevel    = strict | moderate | lenient
//	TTL:    refreshed on every save
package prefs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/moderation/internal/moderation"
)

const (
	// PrefsPrefix is the Redis key prefix for preference hashes.
	PrefsPrefix = "modprefs:"

	// DefaultTTL is how long preferences outlive the last save.
	DefaultTTL = 24 * time.Hour
)

// Hash field names.
const (
	fieldBlockNumbers           = "blockNumbers"
	fieldBlockEmails            = "blockEmails"
	fieldBlockLinks             = "blockLinks"
	fieldBlockSocialMedia       = "blockSocialMedia"
	fieldBlockPhysicalAddresses = "blockPhysicalAddresses"
	fieldEnableProfanityFilter  = "enableProfanityFilter"
	fieldCensorProfanity        = "censorProfanity"
	fieldProfanityLanguages     = "profanityLanguages"
	fieldModerationLevel        = "moderationLevel"
)

// Store manages moderation preferences in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a preference store. A zero ttl means DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Get retrieves a session's config. Returns nil if none is stored.
func (s *Store) Get(ctx context.Context, sessionID string) (*moderation.Config, error) {
	fields, err := s.client.HGetAll(ctx, PrefsPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("prefs: get: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil // not found
	}

	cfg := moderation.Config{
		BlockNumbers:           fields[fieldBlockNumbers] == "1",
		BlockEmails:            fields[fieldBlockEmails] == "1",
		BlockLinks:             fields[fieldBlockLinks] == "1",
		BlockSocialMedia:       fields[fieldBlockSocialMedia] == "1",
		BlockPhysicalAddresses: fields[fieldBlockPhysicalAddresses] == "1",
		EnableProfanityFilter:  fields[fieldEnableProfanityFilter] == "1",
		CensorProfanity:        fields[fieldCensorProfanity] == "1",
		ProfanityLanguages:     splitLanguages(fields[fieldProfanityLanguages]),
		ModerationLevel:        moderation.Level(fields[fieldModerationLevel]),
	}
	return &cfg, nil
}

// Save stores a session's config and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sessionID string, cfg moderation.Config) error {
	key := PrefsPrefix + sessionID

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key,
		fieldBlockNumbers, flag(cfg.BlockNumbers),
		fieldBlockEmails, flag(cfg.BlockEmails),
		fieldBlockLinks, flag(cfg.BlockLinks),
		fieldBlockSocialMedia, flag(cfg.BlockSocialMedia),
		fieldBlockPhysicalAddresses, flag(cfg.BlockPhysicalAddresses),
		fieldEnableProfanityFilter, flag(cfg.EnableProfanityFilter),
		fieldCensorProfanity, flag(cfg.CensorProfanity),
		fieldProfanityLanguages, strings.Join(cfg.ProfanityLanguages, ","),
		fieldModerationLevel, string(cfg.ModerationLevel),
	)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("prefs: save: %w", err)
	}
	return nil
}

// Patch merges patch over the session's stored config, or over fallback
// when nothing is stored, saves the result and returns it.
func (s *Store) Patch(ctx context.Context, sessionID string, patch moderation.ConfigPatch, fallback moderation.Config) (moderation.Config, error) {
	current, err := s.Get(ctx, sessionID)
	if err != nil {
		return moderation.Config{}, err
	}
	base := fallback
	if current != nil {
		base = *current
	}

	next := patch.Apply(base)
	if err := s.Save(ctx, sessionID, next); err != nil {
		return moderation.Config{}, err
	}
	return next, nil
}

// Delete removes a session's stored config.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, PrefsPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("prefs: delete: %w", err)
	}
	return nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func splitLanguages(s string) []string {
	out := []string{}
	for _, lang := range strings.Split(s, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}
