package bootstrap

import (
	"context"
	"testing"

	"fixmystuff/internal/auth"
	"fixmystuff/internal/config"
	"fixmystuff/internal/repository"
	"fixmystuff/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDemoUser(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	ctx := context.Background()
	cfg := &config.Config{Env: "development", DevDemoEmail: "Demo@FixMyStuff.local", DevDemoPassword: "wrench123"}

	require.NoError(t, EnsureDemoUser(ctx, cfg, users))
	demo, err := users.GetByEmail(ctx, "demo@fixmystuff.local")
	require.NoError(t, err)
	require.NotNil(t, demo)
	assert.Equal(t, "demo", demo.Username)
	assert.True(t, auth.CheckPassword(demo.Password, "wrench123"))

	// Idempotent.
	require.NoError(t, EnsureDemoUser(ctx, cfg, users))
	var count int64
	require.NoError(t, db.Table("users").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureDemoUserSkippedOutsideDevelopment(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	for _, cfg := range []*config.Config{
		{Env: "production", DevDemoEmail: "demo@fixmystuff.local", DevDemoPassword: "wrench123"},
		{Env: "development", DevDemoEmail: "demo@fixmystuff.local"},
		nil,
	} {
		require.NoError(t, EnsureDemoUser(ctx, cfg, users))
	}
	found, err := users.GetByEmail(ctx, "demo@fixmystuff.local")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestEnsureDemoUserRejectsBadEmail(t *testing.T) {
	users := repository.NewUserRepository(testutil.NewSQLiteDB(t))
	cfg := &config.Config{Env: "development", DevDemoEmail: "nope", DevDemoPassword: "wrench123"}
	assert.Error(t, EnsureDemoUser(context.Background(), cfg, users))
}
