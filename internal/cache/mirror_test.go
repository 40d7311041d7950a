package cache

import (
	"context"
	"errors"
	"time"

	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRedisClient struct {
	store map[string]string
	err   error
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{store: make(map[string]string)}
}

func (f *fakeRedisClient) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.store[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (f *fakeRedisClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.store[key] = string(value.([]byte))
	return nil
}

func (f *fakeRedisClient) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.store, k)
	}
	return nil
}

func (f *fakeRedisClient) Exists(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.store[k]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeRedisClient) Expire(_ context.Context, _ string, _ time.Duration) error { return nil }

func (f *fakeRedisClient) Keys(_ context.Context, _ string) ([]string, error) { return nil, nil }

func (f *fakeRedisClient) Pipeline() RedisPipeline { return nil }

func (f *fakeRedisClient) Close() error { return nil }

func TestRedisMirrorSetGetRoundTrip(t *testing.T) {
	m := &RedisMirror{client: newFakeRedisClient()}
	m.Set("key1", []byte("value1"), time.Minute)

	v, ok := m.Get("key1")
	require.True(t, ok)
	require.Equal(t, "value1", v)
}

func TestRedisMirrorGetMissReturnsFalse(t *testing.T) {
	m := &RedisMirror{client: newFakeRedisClient()}
	_, ok := m.Get("missing")
	require.False(t, ok)
}

func TestRedisMirrorNilSafe(t *testing.T) {
	var m *RedisMirror
	m.Set("key1", []byte("v"), time.Minute) // must not panic
	_, ok := m.Get("key1")
	require.False(t, ok)
	require.NoError(t, m.Close())
}

func TestRedisMirrorSetErrorIsBestEffort(t *testing.T) {
	m := &RedisMirror{client: &fakeRedisClient{err: errors.New("boom")}}
	m.Set("key1", []byte("v"), time.Minute) // must not panic or propagate
}
