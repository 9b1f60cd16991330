package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// Blacklist tracks revoked access token IDs until they would have expired anyway.
type Blacklist struct {
	client *redis.Client
}

func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

// Revoke blacklists jti for ttl. Non-positive ttl means the token already expired.
func (b *Blacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if b.client == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether jti was revoked. Lookup failures count as not revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) bool {
	if b.client == nil || jti == "" {
		return false
	}
	n, err := b.client.Exists(ctx, blacklistPrefix+jti).Result()
	return err == nil && n > 0
}
