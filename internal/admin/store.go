// Package admin implements operator controls: the global pause flag with
// optional auto-expiry and the per-sender message rate window. State lives
// in redis when configured so it survives restarts, with an in-memory
// fallback for development.
package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the pause flag and the per-sender rate windows.
type Store interface {
	// SetPause activates the pause flag. A zero until means indefinite.
	SetPause(ctx context.Context, until time.Time) error
	// ClearPause deactivates the pause flag.
	ClearPause(ctx context.Context) error
	// PauseState returns whether processing is paused and, for a timed
	// pause, when it expires (zero for indefinite).
	PauseState(ctx context.Context) (bool, time.Time, error)
	// IncrWindow counts one message for the identity inside the current
	// fixed window and returns the running total.
	IncrWindow(ctx context.Context, identity string, window time.Duration) (int, error)
}

const (
	pauseKey        = "admin:pause"
	pauseIndefinite = "indefinite"
	ratePrefix      = "admin:rate:"
)

// RedisStore is the redis-backed Store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed admin store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetPause(ctx context.Context, until time.Time) error {
	if until.IsZero() {
		return s.client.Set(ctx, pauseKey, pauseIndefinite, 0).Err()
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return s.ClearPause(ctx)
	}
	return s.client.Set(ctx, pauseKey, until.Format(time.RFC3339), ttl).Err()
}

func (s *RedisStore) ClearPause(ctx context.Context) error {
	return s.client.Del(ctx, pauseKey).Err()
}

func (s *RedisStore) PauseState(ctx context.Context) (bool, time.Time, error) {
	value, err := s.client.Get(ctx, pauseKey).Result()
	if err == redis.Nil {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("read pause flag: %w", err)
	}
	if value == pauseIndefinite {
		return true, time.Time{}, nil
	}
	until, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return true, time.Time{}, nil
	}
	return true, until, nil
}

func (s *RedisStore) IncrWindow(ctx context.Context, identity string, window time.Duration) (int, error) {
	key := ratePrefix + identity
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr rate window: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return int(count), fmt.Errorf("expire rate window: %w", err)
		}
	}
	return int(count), nil
}

var _ Store = (*RedisStore)(nil)

// MemoryStore is the process-local Store fallback.
type MemoryStore struct {
	mu          sync.Mutex
	paused      bool
	pausedUntil time.Time
	windows     map[string]*windowEntry

	now func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewMemoryStore creates an in-memory admin store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) SetPause(_ context.Context, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.pausedUntil = until
	return nil
}

func (s *MemoryStore) ClearPause(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.pausedUntil = time.Time{}
	return nil
}

func (s *MemoryStore) PauseState(_ context.Context) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return false, time.Time{}, nil
	}
	if !s.pausedUntil.IsZero() && !s.now().Before(s.pausedUntil) {
		s.paused = false
		s.pausedUntil = time.Time{}
		return false, time.Time{}, nil
	}
	return true, s.pausedUntil, nil
}

func (s *MemoryStore) IncrWindow(_ context.Context, identity string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.windows[identity]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(window)}
		s.windows[identity] = entry
	}
	entry.count++
	return entry.count, nil
}

var _ Store = (*MemoryStore)(nil)
