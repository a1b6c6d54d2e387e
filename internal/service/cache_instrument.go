package service

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type cacheStore interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// InstrumentedCache fronts a cache store and records hit/miss latency on
// reads. It satisfies the availability cache contract, so it can be dropped
// between the Redis repository and the availability service.
type InstrumentedCache struct {
	store   cacheStore
	metrics *MetricsService
}

// NewInstrumentedCache wraps store with cache metrics recording.
func NewInstrumentedCache(store cacheStore, metrics *MetricsService) *InstrumentedCache {
	return &InstrumentedCache{store: store, metrics: metrics}
}

// GetJSON reads a cached entry, counting the lookup as a hit or miss. A nil
// receiver always misses.
func (c *InstrumentedCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if c == nil || c.store == nil {
		return appErrors.ErrCacheMiss
	}
	start := time.Now()
	err := c.store.GetJSON(ctx, key, dest)
	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(err == nil, duration)
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		return err
	}
	if err != nil {
		return appErrors.ErrCacheMiss
	}
	return nil
}

// SetJSON stores the value.
func (c *InstrumentedCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.SetJSON(ctx, key, value, ttl)
}

// DeletePattern removes cached entries matching pattern.
func (c *InstrumentedCache) DeletePattern(ctx context.Context, pattern string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.DeletePattern(ctx, pattern)
}
