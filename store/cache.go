package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const configKeyPrefix = "voicebridge:callconfig:"

// ConfigCache keeps resolved call configs in Redis so the webhook and the
// stream handler do not hit the database on every ring.
type ConfigCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewConfigCache(addr, password string, db int, ttl time.Duration) *ConfigCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ConfigCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (c *ConfigCache) Get(ctx context.Context, number string) (*CallConfig, error) {
	raw, err := c.rdb.Get(ctx, configKeyPrefix+number).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrCacheMiss
		}
		return nil, fmt.Errorf("reading config cache: %w", err)
	}
	cfg := new(CallConfig)
	if err := sonic.UnmarshalString(raw, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling cached config: %w", err)
	}
	return cfg, nil
}

func (c *ConfigCache) Put(ctx context.Context, number string, cfg *CallConfig) error {
	raw, err := sonic.MarshalString(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config for cache: %w", err)
	}
	if err := c.rdb.Set(ctx, configKeyPrefix+number, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing config cache: %w", err)
	}
	return nil
}

func (c *ConfigCache) Close() error {
	return c.rdb.Close()
}

// Resolver answers config lookups through the cache, falling back to the
// store and repopulating on a miss. A nil cache degrades to direct lookups.
type Resolver struct {
	logger shared.LoggerAdapter
	store  *Store
	cache  *ConfigCache
}

func NewResolver(logger shared.LoggerAdapter, store *Store, cache *ConfigCache) *Resolver {
	return &Resolver{logger: logger, store: store, cache: cache}
}

func (r *Resolver) Resolve(ctx context.Context, number string) (*CallConfig, error) {
	if r.cache != nil {
		cfg, err := r.cache.Get(ctx, number)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, shared.ErrCacheMiss) {
			r.logger.Error("config cache lookup failed", err)
		}
	}
	cfg, err := r.store.CallConfigByNumber(number)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Put(ctx, number, cfg); err != nil {
			r.logger.Error("config cache write failed", err)
		}
	}
	return cfg, nil
}
