package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisKV is the subset of *redis.Client the denylist needs.
type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// TokenDenylist 记录已登出令牌的 jti，过期时间与令牌本身一致
type TokenDenylist struct {
	client redisKV
}

// NewTokenDenylist wraps a Redis client.
func NewTokenDenylist(client redisKV) *TokenDenylist {
	return &TokenDenylist{client: client}
}

// GetRevokedTokenKey 根据 jti 生成 Redis 键
func GetRevokedTokenKey(jti string) string {
	return fmt.Sprintf("revoked_token:%s", jti)
}

// Revoke marks jti as revoked for ttl. Non-positive ttl is a no-op because the
// token has already expired.
func (d *TokenDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, GetRevokedTokenKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, GetRevokedTokenKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}
