package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is one attempt budget: at most Max failures per subject in each Window.
type Rule struct {
	Name   string
	Max    int
	Window time.Duration
}

// Limiter counts failures per rule and subject using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] whose keys start with prefix.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Check returns ErrRateLimited once subject has used up rule's budget.
// A nil Limiter or a rule with Max <= 0 never limits.
func (l *Limiter) Check(ctx context.Context, rule Rule, subject string) error {
	if l == nil || rule.Max <= 0 {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(rule, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(rule.Max) {
		return ErrRateLimited
	}
	return nil
}

// Hit records one failure and returns ErrRateLimited when it exhausts the budget.
func (l *Limiter) Hit(ctx context.Context, rule Rule, subject string) error {
	if l == nil || rule.Max <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(rule, subject), rule.Window)
	if err != nil {
		return err
	}
	if count >= int64(rule.Max) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears subject's counter, typically after a success.
func (l *Limiter) Reset(ctx context.Context, rule Rule, subject string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(rule, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, rule Rule, subject string) (int, error) {
	if l == nil {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(rule, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(rule Rule, subject string) string {
	return l.prefix + ":rl:" + rule.Name + ":" + subject
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set on the first hit only.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
