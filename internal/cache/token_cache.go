package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache maps token digests to user ids so hot requests skip the store.
type TokenCache struct {
	client *redis.Client
}

func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

func tokenKey(hash []byte) string {
	return "token:" + hex.EncodeToString(hash)
}

func (c *TokenCache) Get(ctx context.Context, hash []byte) (int64, bool, error) {
	val, err := c.client.Get(ctx, tokenKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get token: %w", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached user id: %w", err)
	}
	return userID, true, nil
}

func (c *TokenCache) Set(ctx context.Context, hash []byte, userID int64, ttl time.Duration) error {
	if err := c.client.Set(ctx, tokenKey(hash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (c *TokenCache) Delete(ctx context.Context, hash []byte) error {
	if err := c.client.Del(ctx, tokenKey(hash)).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
