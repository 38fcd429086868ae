// Package facetcache caches computed facet bundles keyed by canonical arguments.
package facetcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/argument"
)

var cacheKeyPrefix = domain.KeyPrefix + "facets:"

// store is the consumer interface for the facet cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Cache is an atomic get-or-compute cache over a byte store.
type Cache struct {
	store      store
	ttl        time.Duration
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a cache. cacheTotal is a counter vec with label "result" ("hit"/"miss"), may be nil.
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Key derives the cache key for a namespace and argument set.
// Argument order, list order and blank arguments do not affect the key.
func Key(namespace string, args argument.Args) string {
	h := sha256.Sum256([]byte(args.Canonical()))
	return cacheKeyPrefix + namespace + ":" + hex.EncodeToString(h[:])
}

// GetOrCompute returns the cached value for key, or runs compute once and stores its result.
// Concurrent callers for the same key share a single compute. The shared compute is
// detached from any one caller's cancellation; each caller stops waiting when its own ctx ends.
// Store failures are logged and bypassed; compute failures are returned and never cached.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	if data, ok := c.get(ctx, key); ok {
		c.incCache("hit")
		return data, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// another caller may have filled the key while we waited
		if data, ok := c.get(shared, key); ok {
			c.incCache("hit")
			return data, nil
		}
		c.incCache("miss")

		data, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.put(shared, key, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("compute %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("compute %s: %w", key, res.Err)
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate drops every entry under namespace.
func (c *Cache) Invalidate(ctx context.Context, namespace string) (int, error) {
	n, err := c.store.DeletePrefix(ctx, cacheKeyPrefix+namespace+":")
	if err != nil {
		return 0, fmt.Errorf("invalidate %s: %w", namespace, err)
	}
	return n, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached facets", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *Cache) put(ctx context.Context, key string, data []byte) {
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache facets", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
