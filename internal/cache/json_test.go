package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*JSON, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute), mr
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KeyTagProducts(" Курица ", 5), []int64{1, 2}))
	var ids []int64
	ok, err := c.Get(ctx, "tags:products:курица:5", &ids)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int64{1, 2}, ids)

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "tags:products:курица:5", &ids)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeletePrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, KeyTagProducts("сыр", 5), []int64{1}))
	require.NoError(t, c.Set(ctx, KeyTagProducts("соль", 3), []int64{2}))
	require.NoError(t, c.Set(ctx, KeyAnalysisStats(4), map[string]int{"total": 1}))

	require.NoError(t, c.DeletePrefix(ctx, PrefixTagProducts))
	require.False(t, mr.Exists("tags:products:сыр:5"))
	require.True(t, mr.Exists("analysis:stats:4"))
}

func TestNilCacheIsMiss(t *testing.T) {
	var c *JSON
	var v any
	ok, err := c.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Set(context.Background(), "k", 1))
}
