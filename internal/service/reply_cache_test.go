package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-extract/internal/model"
)

func TestRedisReplyCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewRedisReplyCache(rdb, time.Minute, "test:")
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", `[{"a":1}]`))
	assert.True(t, mr.Exists("test:k"))

	v, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"a":1}]`, v)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisReplyCache_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, _, err := NewRedisReplyCache(rdb, 0, "").Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestReplyCacheKey(t *testing.T) {
	parts := []model.ContentPart{model.TextPart("hi"), model.InlineBinaryPart("image/png", []byte{1, 2})}

	k1, err := ReplyCacheKey("m", "instr", parts)
	require.NoError(t, err)
	assert.Len(t, k1, 64)

	k2, _ := ReplyCacheKey("m", "instr", parts)
	assert.Equal(t, k1, k2)

	other, _ := ReplyCacheKey("other-model", "instr", parts)
	assert.NotEqual(t, k1, other)

	other, _ = ReplyCacheKey("m", "", parts)
	assert.NotEqual(t, k1, other)

	other, _ = ReplyCacheKey("m", "instr", parts[:1])
	assert.NotEqual(t, k1, other)
}
