package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:"

// Revoker records revoked token IDs in Redis until the token would have
// expired anyway. A nil client disables revocation.
type Revoker struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRevoker returns a Revoker backed by rdb.
func NewRevoker(rdb *redis.Client) *Revoker {
	return &Revoker{rdb: rdb, now: time.Now}
}

// Revoke blacklists the token ID until expiresAt.
func (r *Revoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if r == nil || r.rdb == nil || jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether jti was revoked. Redis errors are treated as
// not revoked.
func (r *Revoker) IsRevoked(ctx context.Context, jti string) bool {
	if r == nil || r.rdb == nil || jti == "" {
		return false
	}
	n, err := r.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	return err == nil && n > 0
}
