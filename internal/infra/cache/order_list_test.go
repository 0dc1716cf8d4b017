package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-admin/internal/domain"
)

func newTestCache(t *testing.T) (*RedisOrderListCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisOrderListCache(rdb, 10*time.Second, nil), mr
}

func TestOrderListCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "user-1", "p=1")
	assert.False(t, ok)

	c.Set(ctx, "user-1", "p=1", &domain.OrderPage{
		Orders:     []domain.Order{{ID: "o-1", Status: domain.StatusCompleted}},
		TotalCount: 1,
	})

	page, ok := c.Get(ctx, "user-1", "p=1")
	require.True(t, ok)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "o-1", page.Orders[0].ID)
	assert.EqualValues(t, 1, page.TotalCount)

	_, ok = c.Get(ctx, "user-2", "p=1")
	assert.False(t, ok, "pages are per user")
}

func TestOrderListCache_InvalidateDropsAllPages(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "user-1", "p=1", &domain.OrderPage{TotalCount: 3})
	c.Set(ctx, "user-1", "p=2", &domain.OrderPage{TotalCount: 3})
	c.Set(ctx, "user-2", "p=1", &domain.OrderPage{TotalCount: 9})

	c.Invalidate(ctx, "user-1")

	_, ok := c.Get(ctx, "user-1", "p=1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "user-1", "p=2")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "user-2", "p=1")
	assert.True(t, ok)
}

func TestOrderListCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "user-1", "p=1", &domain.OrderPage{TotalCount: 1})
	mr.FastForward(11 * time.Second)

	_, ok := c.Get(ctx, "user-1", "p=1")
	assert.False(t, ok)
}

func TestOrderListCache_RedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	c.Set(context.Background(), "user-1", "p=1", &domain.OrderPage{})
	_, ok := c.Get(context.Background(), "user-1", "p=1")
	assert.False(t, ok)
	c.Invalidate(context.Background(), "user-1")
}
