package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/indiansinghana/iig-backend/internal/platform/metrics"
)

// Cache stores serialized catalog lookups.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implements Cache on a go-redis client.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// cachedCatalog is a read-through Catalog. Misses (ErrNotFound) are not
// cached so newly created plans become visible immediately. Cache errors fall
// through to the wrapped catalog.
type cachedCatalog struct {
	next  Catalog
	cache Cache
	ttl   time.Duration
}

func NewCachedCatalog(next Catalog, cache Cache, ttl time.Duration) Catalog {
	return &cachedCatalog{next: next, cache: cache, ttl: ttl}
}

func (c *cachedCatalog) GetPlanByKey(ctx context.Context, typ Type, key Key) (*Plan, error) {
	var p Plan
	err := c.through(ctx, fmt.Sprintf("plan:key:%s:%s", typ, key), &p, func() (any, error) {
		return c.next.GetPlanByKey(ctx, typ, key)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *cachedCatalog) GetPlanByPriority(ctx context.Context, typ Type, priority int) (*Plan, error) {
	var p Plan
	err := c.through(ctx, fmt.Sprintf("plan:priority:%s:%d", typ, priority), &p, func() (any, error) {
		return c.next.GetPlanByPriority(ctx, typ, priority)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *cachedCatalog) ListActivePlans(ctx context.Context, typ Type) ([]*Plan, error) {
	var plans []*Plan
	err := c.through(ctx, fmt.Sprintf("plan:list:%s", typ), &plans, func() (any, error) {
		return c.next.ListActivePlans(ctx, typ)
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// through decodes the cached value for key into dst, or loads, stores and
// decodes it.
func (c *cachedCatalog) through(ctx context.Context, key string, dst any, load func() (any, error)) error {
	log := zerolog.Ctx(ctx)

	raw, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.PlanCacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("cache_key", key).Msg("plan cache read failed")
	case ok:
		if err := json.Unmarshal(raw, dst); err == nil {
			metrics.PlanCacheLookups.WithLabelValues("hit").Inc()
			return nil
		}
		log.Warn().Str("cache_key", key).Msg("discarding undecodable plan cache entry")
	default:
		metrics.PlanCacheLookups.WithLabelValues("miss").Inc()
	}

	v, err := load()
	if err != nil {
		return err
	}
	raw, err = json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("plan cache write failed")
	}
	return json.Unmarshal(raw, dst)
}
