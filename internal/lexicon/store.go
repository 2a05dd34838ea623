// Package lexicon persists custom profanity entries in Redis so that words
// added at runtime survive restarts and reach new instances:
//
//	Key: lexicon:<language>   Set of words
//	Key: lexicon:languages    Set of language codes with custom words
package lexicon

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	// LexiconPrefix is the Redis key prefix for per-language word sets.
	LexiconPrefix = "lexicon:"

	// LanguagesKey indexes every language that has custom words.
	LanguagesKey = LexiconPrefix + "languages"
)

// Store manages custom lexicon entries in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a lexicon store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Add persists words for a language. Words are normalised the same way the
// in-process lexicon normalises them.
func (s *Store) Add(ctx context.Context, language string, words []string) error {
	language = strings.ToLower(strings.TrimSpace(language))
	members := make([]interface{}, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			members = append(members, w)
		}
	}
	if language == "" || len(members) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, LexiconPrefix+language, members...)
	pipe.SAdd(ctx, LanguagesKey, language)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lexicon: add: %w", err)
	}
	return nil
}

// LoadAll returns every persisted language with its words, both sorted so
// replaying them into the process lexicon is deterministic.
func (s *Store) LoadAll(ctx context.Context) (map[string][]string, error) {
	languages, err := s.client.SMembers(ctx, LanguagesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("lexicon: load languages: %w", err)
	}
	sort.Strings(languages)

	out := make(map[string][]string, len(languages))
	for _, lang := range languages {
		words, err := s.client.SMembers(ctx, LexiconPrefix+lang).Result()
		if err != nil {
			return nil, fmt.Errorf("lexicon: load %s: %w", lang, err)
		}
		sort.Strings(words)
		out[lang] = words
	}
	return out, nil
}
