package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

// Runs against a real server when BUDGET_TEST_REDIS_URL is set.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("BUDGET_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BUDGET_TEST_REDIS_URL not set")
	}
	client, err := NewRedisClient(context.Background(), url)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testPrefix(t *testing.T) string {
	return fmt.Sprintf("budget-test:%s:%d:", t.Name(), time.Now().UnixNano())
}

func TestRedisCache_RoundTripsEntries(t *testing.T) {
	client := newTestRedisClient(t)
	ctx := context.Background()
	c := NewRedisCache[[]core.Entry](client, testPrefix(t), time.Minute, nil)

	food := "Food"
	entries := []core.Entry{
		{Type: core.Expense, Amount: decimal.RequireFromString("40.5"), Category: &food, Date: core.NewDate(2025, 2, 3), Description: "Groceries"},
		{Type: core.Income, Amount: decimal.NewFromInt(100), Date: core.NewDate(2025, 1, 15), Description: "Salary"},
	}
	c.Set(ctx, "entries:all", entries)

	got, ok := c.Get(ctx, "entries:all")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, core.Expense, got[0].Type)
	assert.Equal(t, "40.50", got[0].Amount.StringFixed(2))
	require.NotNil(t, got[0].Category)
	assert.Equal(t, "Food", *got[0].Category)
	assert.Equal(t, "2025-02-03", got[0].Date.String())
	assert.Nil(t, got[1].Category)
	assert.Equal(t, "Salary", got[1].Description)

	ttl, err := client.TTL(ctx, c.key("entries:all")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisCache_MissDeleteAndStats(t *testing.T) {
	client := newTestRedisClient(t)
	ctx := context.Background()
	c := NewRedisCache[[]core.Entry](client, testPrefix(t), time.Minute, nil)

	_, ok := c.Get(ctx, "absent")
	assert.False(t, ok)

	c.Set(ctx, "k", []core.Entry{})
	got, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Empty(t, got)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	n, err := client.Exists(ctx, c.key("k")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, Stats{Hits: 1, Misses: 2, Size: -1}, c.Stats())
}

func TestRedisCache_UndecodableValueIsAMiss(t *testing.T) {
	client := newTestRedisClient(t)
	ctx := context.Background()
	c := NewRedisCache[[]core.Entry](client, testPrefix(t), time.Minute, nil)

	require.NoError(t, client.Set(ctx, c.key("k"), "not json", time.Minute).Err())
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
	c.Delete(ctx, "k")
}

func TestNewRedisClient_RejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "http://not-redis")
	assert.Error(t, err)
}
