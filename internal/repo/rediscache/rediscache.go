package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.TargetStore = (*TargetStore)(nil)

// TargetStore is a read-through cache over another TargetStore. Only Get is
// cached (the notifier looks chat ids up on every transition); writes go to
// the underlying store first and then drop the cached key.
type TargetStore struct {
	redis *redis.Client
	repo  repo.TargetStore
	ttl   time.Duration
	log   *zap.Logger
}

func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func New(client *redis.Client, underlying repo.TargetStore, ttl time.Duration, log *zap.Logger) *TargetStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TargetStore{redis: client, repo: underlying, ttl: ttl, log: log}
}

func key(url string) string { return "sitewatch:target:" + url }

func (c *TargetStore) List(ctx context.Context) ([]domain.Target, error) {
	return c.repo.List(ctx)
}

func (c *TargetStore) Get(ctx context.Context, url string) (*domain.Target, error) {
	b, err := c.redis.Get(ctx, key(url)).Bytes()
	if err == nil {
		var t domain.Target
		if e := json.Unmarshal(b, &t); e == nil {
			return &t, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// cache trouble must not break lookups
		c.log.Warn("redis_get_error", zap.String("url", url), zap.Error(err))
	}

	t, err := c.repo.Get(ctx, url)
	if err != nil || t == nil {
		return t, err
	}
	if b, e := json.Marshal(t); e == nil {
		if e := c.redis.Set(ctx, key(url), b, c.ttl).Err(); e != nil {
			c.log.Warn("redis_set_error", zap.String("url", url), zap.Error(e))
		}
	}
	return t, nil
}

func (c *TargetStore) Upsert(ctx context.Context, url, chatID string) (domain.Target, error) {
	t, err := c.repo.Upsert(ctx, url, chatID)
	if err != nil {
		return t, err
	}
	c.invalidate(ctx, url)
	return t, nil
}

func (c *TargetStore) Ensure(ctx context.Context, t domain.Target) error {
	if err := c.repo.Ensure(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx, t.URL)
	return nil
}

func (c *TargetStore) invalidate(ctx context.Context, url string) {
	if err := c.redis.Del(ctx, key(url)).Err(); err != nil {
		c.log.Warn("redis_del_error", zap.String("url", url), zap.Error(err))
	}
}
