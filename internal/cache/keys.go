package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	RecentFixesKeyPrefix = "fixes:recent:%d"
	recentFixesPattern   = "fixes:recent:*"
	userPattern          = "user:*"
)

const (
	UserTTL        = 5 * time.Minute
	RecentFixesTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func RecentFixesKey(limit int) string {
	return fmt.Sprintf(RecentFixesKeyPrefix, limit)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateRecentFixes drops every cached page of the community feed.
func InvalidateRecentFixes(ctx context.Context) {
	invalidatePattern(ctx, recentFixesPattern)
}

// InvalidateAllUsers drops every cached user. Used after bulk deletes that
// reset ids.
func InvalidateAllUsers(ctx context.Context) {
	invalidatePattern(ctx, userPattern)
}

func invalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}
