package inflight_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/judge/internal/inflight"
)

func exerciseGuard(t *testing.T, g inflight.Guard) {
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "second claim on a held submission")

	ok, err = g.Acquire(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok, "other submissions are independent")

	require.NoError(t, g.Release(ctx, "a"))

	ok, err = g.Acquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok, "released submissions can be claimed again")
}

func TestLocalGuard(t *testing.T) {
	exerciseGuard(t, inflight.NewLocalGuard())
}

func TestRedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	t.Run("Claims", func(t *testing.T) {
		exerciseGuard(t, inflight.NewRedisGuard(inflight.RedisGuardConfig{RedisClient: rdb}))
	})

	t.Run("Expires", func(t *testing.T) {
		g := inflight.NewRedisGuard(inflight.RedisGuardConfig{RedisClient: rdb, TTL: time.Minute})
		ctx := context.Background()

		ok, err := g.Acquire(ctx, "c")
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(2 * time.Minute)

		ok, err = g.Acquire(ctx, "c")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Unreachable", func(t *testing.T) {
		broken := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
		t.Cleanup(func() { _ = broken.Close() })

		ok, err := inflight.NewRedisGuard(inflight.RedisGuardConfig{RedisClient: broken, FailOpen: true}).
			Acquire(context.Background(), "d")
		require.Error(t, err)
		assert.True(t, ok)

		ok, err = inflight.NewRedisGuard(inflight.RedisGuardConfig{RedisClient: broken}).
			Acquire(context.Background(), "d")
		require.Error(t, err)
		assert.False(t, ok)
	})
}
