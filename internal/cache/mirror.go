package cache

import (
	"context"
	"time"

	"sandboxcore/internal/logging"
)

// RedisMirror optionally replicates cache fabric writes through Redis so
// multiple core processes on one host can share warm caches. It is
// always a best-effort mirror: the in-memory caches remain the source of
// truth and every miss falls back to recomputation, never to blocking on
// Redis availability.
type RedisMirror struct {
	client RedisClient
}

// NewRedisMirror connects to redisURL, or returns (nil, err) if Redis is
// unreachable — callers should treat a non-nil error as "run without a
// mirror", not as fatal.
func NewRedisMirror(redisURL string) (*RedisMirror, error) {
	adapter, err := NewGoRedisClient(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisMirror{client: adapter}, nil
}

// Set best-effort mirrors key/value with ttl.
func (m *RedisMirror) Set(key string, value []byte, ttl time.Duration) {
	if m == nil || m.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.client.Set(ctx, key, value, ttl); err != nil {
		logging.S().Debugw("redis mirror set failed", "key", key, "error", err)
	}
}

// Get best-effort reads key, reporting ("", false) on any miss or error.
func (m *RedisMirror) Get(key string) (string, bool) {
	if m == nil || m.client == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := m.client.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return v, true
}

// Close releases the underlying connection.
func (m *RedisMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
