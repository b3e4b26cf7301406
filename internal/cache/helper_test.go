package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = Close() })
	return mr
}

func TestAside(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 1, Username: "fixer"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "fixer", first.Username)
	assert.True(t, mr.Exists("user:1"))

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second read is served from cache")

	mr.FastForward(UserTTL + time.Second)
	var third cachedUser
	require.NoError(t, Aside(ctx, UserKey(1), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupMiniredis(t)

	var dest cachedUser
	err := Aside(context.Background(), UserKey(2), &dest, UserTTL, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("user:2"))
}

func TestAside_WithoutRedis(t *testing.T) {
	SetClient(nil)

	var dest cachedUser
	err := Aside(context.Background(), UserKey(3), &dest, UserTTL, func() error {
		dest.ID = 3
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), dest.ID)

	found, err := GetJSON(context.Background(), UserKey(3), &dest)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidation(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, UserKey(4), cachedUser{ID: 4}, UserTTL))
	require.NoError(t, SetJSON(ctx, RecentFixesKey(10), []string{"a"}, RecentFixesTTL))
	require.NoError(t, SetJSON(ctx, RecentFixesKey(20), []string{"b"}, RecentFixesTTL))

	InvalidateUser(ctx, 4)
	assert.False(t, mr.Exists("user:4"))

	InvalidateRecentFixes(ctx)
	assert.False(t, mr.Exists("fixes:recent:10"))
	assert.False(t, mr.Exists("fixes:recent:20"))
}
