package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned by [Store.Load] when no session is held.
var ErrNoSession = errors.New("no session")

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionCorrupt is returned when a stored session blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

// ErrSessionExpired is returned by Replace when the session is already past its
// expiry and therefore cannot be held.
var ErrSessionExpired = errors.New("session expired")

// Store is the process-wide holder of the current session.
//
// Writes replace the whole value; implementations must never expose a
// partially written session to Load.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Replace(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory. The zero value is an
// empty store ready for use.
type MemoryStore struct {
	current atomic.Pointer[Session]
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the current session or [ErrNoSession].
func (m *MemoryStore) Load(context.Context) (Session, error) {
	s := m.current.Load()
	if s == nil {
		return Session{}, ErrNoSession
	}
	return *s, nil
}

// Replace swaps in s atomically.
func (m *MemoryStore) Replace(_ context.Context, s Session) error {
	if s.Token == "" {
		return errors.New("session token empty")
	}
	next := s
	m.current.Store(&next)
	return nil
}

// Clear drops the current session. Clearing an empty store is not an error.
func (m *MemoryStore) Clear(context.Context) error {
	m.current.Store(nil)
	return nil
}

// RedisStore keeps the session of one named profile in Redis so that separate
// processes (for example consecutive CLI invocations) share it. The key expires
// together with the session.
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	profile    string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewRedisStore creates a Redis-backed store. defaultTTL bounds sessions whose
// token carries no expiry.
func NewRedisStore(client redis.UniversalClient, prefix, profile string, defaultTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "af"
	}
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		redis:      client,
		prefix:     prefix,
		profile:    profile,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (r *RedisStore) key() string {
	return r.prefix + ":session:" + r.profile
}

// Load returns the stored session, or [ErrNoSession] when the key is absent or
// the session has expired.
func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	data, err := r.redis.Get(ctx, r.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s, err := Decode(data)
	if err != nil {
		if delErr := r.Clear(ctx); delErr != nil {
			return Session{}, delErr
		}
		return Session{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	if s.Expired(r.now()) {
		if err := r.Clear(ctx); err != nil {
			return Session{}, err
		}
		return Session{}, ErrNoSession
	}

	return *s, nil
}

// Replace writes s with a TTL equal to its remaining lifetime.
func (r *RedisStore) Replace(ctx context.Context, s Session) error {
	ttl := r.defaultTTL
	if !s.ExpiresAt.IsZero() {
		ttl = s.Remaining(r.now())
		if ttl <= 0 {
			return ErrSessionExpired
		}
	}
	if ttl <= 0 {
		return errors.New("session ttl must be > 0")
	}

	data, err := Encode(&s)
	if err != nil {
		return err
	}

	if err := r.redis.Set(ctx, r.key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear deletes the stored session. Clearing an absent key is not an error.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.redis.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures a round trip to Redis.
func (r *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
