// Package strike tracks blocked messages per session and mutes repeat
// offenders. Records are plain Redis keys with TTL-based expiry:
//
//	Key:   strikes:<session_id>   Value: blocked message count
//	Key:   mute:<session_id>      Value: <reason>
package strike

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StrikePrefix is the Redis key prefix for strike counters.
	StrikePrefix = "strikes:"

	// MutePrefix is the Redis key prefix for mute records.
	MutePrefix = "mute:"

	// StrikeWindow is how long the strike counter lives. It is set on the
	// first strike and does not slide.
	StrikeWindow = 10 * time.Minute

	// MuteThreshold is the number of strikes within StrikeWindow that
	// mutes the sender.
	MuteThreshold = 3

	// Escalating mute durations.
	Mute5Min   = 5 * time.Minute  // 3rd strike
	Mute30Min  = 30 * time.Minute // 4th strike
	Mute24Hour = 24 * time.Hour   // 5th strike onwards
)

// Store manages strike counters and mutes in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new strike store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// muteDuration returns the mute for a given strike count, or zero below
// the threshold.
func muteDuration(strikes int) time.Duration {
	switch {
	case strikes < MuteThreshold:
		return 0
	case strikes == MuteThreshold:
		return Mute5Min
	case strikes == MuteThreshold+1:
		return Mute30Min
	default:
		return Mute24Hour
	}
}

// Record adds a strike for a session and mutes it once the threshold is
// reached:
//
//	3rd strike   -> 5 minutes
//	4th strike   -> 30 minutes
//	5th+ strike  -> 24 hours
//
// Returns the mute duration applied, or zero if the session was not muted.
func (s *Store) Record(ctx context.Context, sessionID, reason string) (time.Duration, error) {
	key := StrikePrefix + sessionID

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("strike: record incr: %w", err)
	}

	// Set TTL only on first increment so the window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, StrikeWindow).Err(); err != nil {
			return 0, fmt.Errorf("strike: record expire: %w", err)
		}
	}

	duration := muteDuration(int(count))
	if duration == 0 {
		return 0, nil
	}
	if err := s.client.Set(ctx, MutePrefix+sessionID, reason, duration).Err(); err != nil {
		return 0, fmt.Errorf("strike: mute: %w", err)
	}
	return duration, nil
}

// IsMuted returns the remaining mute and its reason. A session that is not
// muted returns zero and an empty reason. Redis errors are returned so
// callers can decide how to handle them (the service fails open).
func (s *Store) IsMuted(ctx context.Context, sessionID string) (time.Duration, string, error) {
	key := MutePrefix + sessionID

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		// The mute exists but the TTL is unknown; report a minimal
		// remaining time rather than swallowing the mute.
		return time.Second, reason, nil
	}
	return ttl, reason, nil
}

// Count returns the current strike count, or 0 when the window expired.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	val, err := s.client.Get(ctx, StrikePrefix+sessionID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Clear removes both the strike counter and any mute for a session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, StrikePrefix+sessionID, MutePrefix+sessionID).Err()
}
