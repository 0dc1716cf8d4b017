package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"order-admin/internal/domain"
)

// OrderListCache holds order list pages per user. Pages are keyed under a
// per-user version counter so a write drops every cached page at once.
type OrderListCache interface {
	Get(ctx context.Context, userID, query string) (*domain.OrderPage, bool)
	Set(ctx context.Context, userID, query string, page *domain.OrderPage)
	Invalidate(ctx context.Context, userID string)
}

type RedisOrderListCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

var _ OrderListCache = (*RedisOrderListCache)(nil)

func NewRedisOrderListCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisOrderListCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisOrderListCache{rdb: rdb, ttl: ttl, log: log}
}

func versionKey(userID string) string {
	return "orders:list:" + userID + ":ver"
}

func (c *RedisOrderListCache) pageKey(ctx context.Context, userID, query string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(userID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("orders:list:%s:v%d:%s", userID, ver, query), nil
}

// Get never reports a hit on a redis error.
func (c *RedisOrderListCache) Get(ctx context.Context, userID, query string) (*domain.OrderPage, bool) {
	key, err := c.pageKey(ctx, userID, query)
	if err != nil {
		c.log.Warn("order list cache version lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("order list cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var page domain.OrderPage
	if err := json.Unmarshal(b, &page); err != nil {
		c.log.Warn("order list cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &page, true
}

func (c *RedisOrderListCache) Set(ctx context.Context, userID, query string, page *domain.OrderPage) {
	key, err := c.pageKey(ctx, userID, query)
	if err != nil {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("order list cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisOrderListCache) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Incr(ctx, versionKey(userID)).Err(); err != nil {
		c.log.Warn("order list cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Nop disables caching.
type Nop struct{}

func (Nop) Get(context.Context, string, string) (*domain.OrderPage, bool) { return nil, false }
func (Nop) Set(context.Context, string, string, *domain.OrderPage)        {}
func (Nop) Invalidate(context.Context, string)                            {}
