package generator

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "docpipe:gen:"

// Store is the key-value backend of Cached. pkg/redis.Client implements it.
type Store interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Forgetter drops a cached response, so that the next request for it goes
// to the remote service again.
type Forgetter interface {
	Forget(ctx context.Context, req Request) error
}

// Cached serves repeated identical requests from a Store. Cache errors are
// logged and degrade to calling the wrapped Generator; only successful
// responses are stored.
type Cached struct {
	next    Generator
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCached wraps next with store. m may be nil.
func NewCached(next Generator, store Store, ttl time.Duration, m *metrics.Metrics) *Cached {
	return &Cached{
		next:    next,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("generation-cache"),
	}
}

// Generate returns the cached response for req or calls the wrapped
// Generator and caches its result.
func (c *Cached) Generate(ctx context.Context, req Request) (string, error) {
	key := c.buildKey(req)
	if text, ok := c.get(ctx, key); ok {
		return text, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		text, err := c.next.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		if err := c.store.Set(ctx, key, text, c.ttl); err != nil {
			c.logger.Error("cache set failed", "key", key, "error", err)
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return val.(string), nil
}

// Forget removes the cached response for req.
func (c *Cached) Forget(ctx context.Context, req Request) error {
	key := c.buildKey(req)
	if err := c.store.Del(ctx, key); err != nil {
		return fmt.Errorf("forgetting cached response: %w", err)
	}
	c.logger.Debug("cached response dropped", "key", key)
	return nil
}

// Stats returns the hit and miss counts since creation. Cycles log them.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cached) get(ctx context.Context, key string) (string, bool) {
	text, ok, err := c.store.Lookup(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if err != nil || !ok {
		c.misses.Add(1)
		c.metrics.CacheMiss()
		return "", false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Info("serving generation from cache", "key", key)
	return text, true
}

func (c *Cached) buildKey(req Request) string {
	h := sha256.New()
	for _, part := range []string{
		req.Model,
		strconv.FormatFloat(req.Temperature, 'g', -1, 64),
		strconv.Itoa(req.MaxTokens),
		req.System,
		req.Prompt,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil)[:16])
}
