// Package cache stores highlighted query results in Redis. Keys embed the
// engine generation, which changes on every add, so a cached result is only
// ever served for the exact index state that produced it. Concurrent misses
// for one key are collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/redis"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached results for term at generation.
func (c *QueryCache) Get(ctx context.Context, term string, generation uint64) ([]string, bool) {
	key := buildKey(term, generation)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []string
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "term", term, "key", key)
	return results, true
}

// Set stores results for term at generation. Failures are logged, not
// returned; the cache is best-effort.
func (c *QueryCache) Set(ctx context.Context, term string, generation uint64, results []string) {
	key := buildKey(term, generation)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results when present, otherwise runs computeFn
// once per key across concurrent callers and caches its result.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	term string,
	generation uint64,
	computeFn func() []string,
) ([]string, bool) {
	if results, ok := c.Get(ctx, term, generation); ok {
		return results, true
	}
	key := buildKey(term, generation)
	val, _, _ := c.group.Do(key, func() (any, error) {
		results := computeFn()
		c.Set(ctx, term, generation, results)
		return results, nil
	})
	return val.([]string), false
}

// Invalidate removes every cached query result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the lowercased term so arbitrary query text yields a
// bounded, glob-safe key.
func buildKey(term string, generation uint64) string {
	raw := fmt.Sprintf("%s\x00gen=%d", strings.ToLower(term), generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
