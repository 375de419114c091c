package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to TEST_REDIS_ADDR and flushes the selected database.
func newTestClient(t *testing.T) *Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(addr, "", 15)
	require.NoError(t, err)
	require.NoError(t, c.GetClient().FlushDB(context.Background()).Err())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIdempotencyKey(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetIdempotencyKey(ctx, "k1", "order-1", time.Minute))
	val, ok, err := c.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order-1", val)
}

func TestProductCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	p := &models.Product{ID: uuid.New(), Name: "Mug", Price: decimal.RequireFromString("9.50"), Stock: 3}
	require.NoError(t, c.SetProduct(ctx, p, time.Minute))

	got, ok, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Mug", got.Name)
	assert.True(t, p.Price.Equal(got.Price))

	require.NoError(t, c.InvalidateProducts(ctx, p.ID))
	_, ok, err = c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventMarker(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seen, err := c.EventSeen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.MarkEventSeen(ctx, "evt_1", time.Minute))
	seen, err = c.EventSeen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestAllowFixedWindow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, "user-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}
	ok, err := c.Allow(ctx, "user-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := c.GetClient().TTL(ctx, rateKey("user-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
