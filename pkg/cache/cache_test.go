package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string    `json:"name"`
	Score []float64 `json:"score"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisCacheFromClient(client, "test")
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	in := payload{Name: "regime", Score: []float64{0.1, 0.9}}
	require.NoError(t, mc.Set(ctx, "k", in, 0))

	out, err := GetTyped[payload](ctx, mc, "k")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	var missing payload
	assert.ErrorIs(t, mc.Get(ctx, "nope", &missing), ErrCacheMiss)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	mc := NewMemoryCache(WithMemoryClock(func() time.Time { return now }))

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Zero(t, mc.Len())
}

func TestRedisCache_PrefixAndMiss(t *testing.T) {
	ctx := context.Background()
	mr, rc := newTestRedis(t)

	require.NoError(t, rc.Set(ctx, "k", payload{Name: "x"}, time.Minute))
	assert.True(t, mr.Exists("test:k"))

	out, err := GetTyped[payload](ctx, rc, "k")
	require.NoError(t, err)
	assert.Equal(t, "x", out.Name)

	mr.FastForward(2 * time.Minute)
	_, err = GetTyped[payload](ctx, rc, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "a", 1, 0))
	ok, err := rc.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, rc.Delete(ctx, "a"))
	assert.False(t, mr.Exists("test:a"))
}

func TestLayeredCache_PromotesFromL2(t *testing.T) {
	ctx := context.Background()
	mr, rc := newTestRedis(t)
	lc := NewLayeredCache(rc)

	require.NoError(t, lc.Set(ctx, "k", payload{Name: "layered"}, time.Hour))
	assert.True(t, mr.Exists("test:k"))

	// A fresh L1 in front of the same Redis still sees the value.
	other := NewLayeredCache(rc)
	out, err := GetTyped[payload](ctx, other, "k")
	require.NoError(t, err)
	assert.Equal(t, "layered", out.Name)

	mr.FlushAll()
	out, err = GetTyped[payload](ctx, other, "k")
	require.NoError(t, err, "served from L1 after promotion")
	assert.Equal(t, "layered", out.Name)

	require.NoError(t, other.Delete(ctx, "k"))
	_, err = GetTyped[payload](ctx, other, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKeyAndHashBytes(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashBytes(nil))
	assert.Equal(t, "fit:regime:abc", Key("fit", "regime", "abc"))
}

func TestRedisCache_Health(t *testing.T) {
	mr, rc := newTestRedis(t)
	assert.NoError(t, rc.Health(context.Background()))

	mr.Close()
	assert.Error(t, rc.Health(context.Background()))
}
