package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"gemini-extract/internal/model"
)

const defaultCachePrefix = "gemini-extract:reply:"

// ReplyCache memoizes raw model replies for identical requests.
type ReplyCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, reply string) error
}

type RedisReplyCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisReplyCache(rdb *redis.Client, ttl time.Duration, prefix string) *RedisReplyCache {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisReplyCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *RedisReplyCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisReplyCache) Set(ctx context.Context, key, reply string) error {
	return c.rdb.Set(ctx, c.prefix+key, reply, c.ttl).Err()
}

// ReplyCacheKey hashes everything that determines the model reply.
func ReplyCacheKey(modelName, instruction string, parts []model.ContentPart) (string, error) {
	payload, err := json.Marshal(parts)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(instruction))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}
