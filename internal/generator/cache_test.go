package generator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return "", false, errors.New("connection refused")
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type countingGenerator struct {
	calls int
	text  string
	err   error
}

func (g *countingGenerator) Generate(ctx context.Context, req Request) (string, error) {
	g.calls++
	return g.text, g.err
}

func TestCachedServesRepeatRequests(t *testing.T) {
	next := &countingGenerator{text: "doc"}
	m := metrics.New(nil)
	c := NewCached(next, newMemStore(), time.Hour, m)
	req := Request{Model: "m", Prompt: "p"}

	for i := 0; i < 3; i++ {
		text, err := c.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "doc", text)
	}
	assert.Equal(t, 1, next.calls)
	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestCachedKeyDependsOnRequest(t *testing.T) {
	next := &countingGenerator{text: "doc"}
	c := NewCached(next, newMemStore(), time.Hour, nil)

	_, err := c.Generate(context.Background(), Request{Model: "m", Prompt: "p1"})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), Request{Model: "m", Prompt: "p2"})
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), Request{Model: "m2", Prompt: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	next := &countingGenerator{err: apperrors.ErrNoResult}
	store := newMemStore()
	c := NewCached(next, store, time.Hour, nil)

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.ErrorIs(t, err, apperrors.ErrNoResult)
	assert.Empty(t, store.data)
}

func TestCachedForget(t *testing.T) {
	next := &countingGenerator{text: "doc"}
	c := NewCached(next, newMemStore(), time.Hour, nil)
	req := Request{Prompt: "p"}

	_, err := c.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, c.Forget(context.Background(), req))
	_, err = c.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedStoreErrorFallsThrough(t *testing.T) {
	next := &countingGenerator{text: "doc"}
	store := newMemStore()
	store.failGet = true
	c := NewCached(next, store, time.Hour, nil)

	text, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "doc", text)
	assert.Equal(t, 1, next.calls)
}
