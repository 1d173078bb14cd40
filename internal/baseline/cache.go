package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pitchsense/pitchsense-engine/internal/metrics"
)

const cacheKeyPrefix = "pitchsense:baseline:"

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedStore fronts a durable store with a Redis cache. Cache failures are
// logged and degrade to the durable store; they never fail a lookup.
type CachedStore struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps inner with a Redis cache. The connection is verified
// up front so a misconfigured cache fails at startup, not mid-match.
func NewCachedStore(inner Store, cfg RedisConfig) (*CachedStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedStore{inner: inner, rdb: rdb, ttl: ttl}, nil
}

// Get looks the baseline up cache-first, falling back to the durable store
// and repopulating the cache on a miss.
func (c *CachedStore) Get(ctx context.Context, playerID string) (Baseline, error) {
	key := cacheKeyPrefix + playerID
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var b Baseline
		if jsonErr := json.Unmarshal(raw, &b); jsonErr == nil {
			metrics.BaselineLookups.WithLabelValues("cache", "hit").Inc()
			return b.Normalize(), nil
		}
		// Corrupt cache entry: drop it and fall through to the store.
		c.rdb.Del(ctx, key)
	case errors.Is(err, redis.Nil):
		metrics.BaselineLookups.WithLabelValues("cache", "miss").Inc()
	default:
		metrics.BaselineLookups.WithLabelValues("cache", "error").Inc()
		log.Warn().Err(err).Str("player", playerID).Msg("baseline cache read failed")
	}

	b, err := c.inner.Get(ctx, playerID)
	if err != nil {
		metrics.BaselineLookups.WithLabelValues("store", "miss").Inc()
		return Baseline{}, err
	}
	metrics.BaselineLookups.WithLabelValues("store", "hit").Inc()
	c.populate(ctx, key, b)
	return b, nil
}

// Put writes through to the durable store, then refreshes the cache.
func (c *CachedStore) Put(ctx context.Context, b Baseline) error {
	if err := c.inner.Put(ctx, b); err != nil {
		return err
	}
	c.populate(ctx, cacheKeyPrefix+b.PlayerID, b.Normalize())
	return nil
}

// List bypasses the cache: it is an admin path, not a hot one.
func (c *CachedStore) List(ctx context.Context) ([]Baseline, error) {
	return c.inner.List(ctx)
}

func (c *CachedStore) populate(ctx context.Context, key string, b Baseline) {
	raw, err := json.Marshal(b)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("baseline cache write failed")
	}
}

// Close closes the cache connection and the durable store.
func (c *CachedStore) Close() error {
	cacheErr := c.rdb.Close()
	if err := c.inner.Close(); err != nil {
		return err
	}
	return cacheErr
}
