// Package ratelimit throttles moderation traffic with fixed-window counters
// kept in Redis. Checks are counted per session, lexicon updates per caller
// and preview connections per client IP.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rule is one throttling policy. The counter for an identifier lives under
// Key+identifier and resets Window after its first hit.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

var (
	// RuleCheck allows 30 moderation checks per 10 seconds per session.
	RuleCheck = Rule{Key: "rl:check:", Limit: 30, Window: 10 * time.Second}

	// RuleLexicon allows 20 lexicon updates per minute per caller.
	RuleLexicon = Rule{Key: "rl:lexicon:", Limit: 20, Window: 1 * time.Minute}

	// RuleConnect allows 10 preview WebSocket connections per minute per IP.
	RuleConnect = Rule{Key: "rl:conn:", Limit: 10, Window: 1 * time.Minute}
)

// Limiter counts hits per identifier in Redis.
type Limiter struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewLimiter returns a Limiter using client.
func NewLimiter(client *redis.Client, log *logrus.Entry) *Limiter {
	return &Limiter{client: client, log: log.WithField("component", "ratelimit")}
}

// Allow records one hit for identifier and reports whether it is still
// under rule.Limit. Redis errors are returned alongside true: an unreachable
// store never rejects a message.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.log.WithError(err).WithField("key", key).Warn("rate counter unavailable, allowing")
		return true, err
	}

	// The first hit opens the window.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			l.log.WithError(err).WithField("key", key).Warn("rate window not set, resetting counter")
			// A counter without a TTL never resets.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// Remaining reports how many hits identifier may still make in its current
// window. An identifier with no open window, or a failed lookup, gets the
// whole rule.Limit.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return rule.Limit, nil
	}
	if err != nil {
		l.log.WithError(err).WithField("key", key).Warn("rate counter unavailable, reporting full quota")
		return rule.Limit, err
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RetryAfter returns how long until the identifier's window resets.
func (l *Limiter) RetryAfter(ctx context.Context, identifier string, rule Rule) time.Duration {
	ttl, err := l.client.TTL(ctx, rule.Key+identifier).Result()
	if err != nil || ttl <= 0 {
		return rule.Window
	}
	return ttl
}
