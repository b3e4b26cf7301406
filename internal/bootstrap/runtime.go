// Package bootstrap wires the process-wide runtime shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"fixmystuff/internal/auth"
	"fixmystuff/internal/cache"
	"fixmystuff/internal/config"
	"fixmystuff/internal/database"
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"
	"fixmystuff/internal/repository"
	"fixmystuff/internal/validation"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema opens the database without applying migrations.
	SkipSchema bool
}

// InitRuntime connects to DB and Redis and, in development, ensures the
// configured demo account exists. The Redis client is nil when Redis is
// unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDemoUser(context.Background(), cfg, repository.NewUserRepository(db)); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development demo user: %w", err)
	}

	return db, r, nil
}

// EnsureDemoUser creates the DEV_DEMO_EMAIL account when running in
// development with DEV_DEMO_PASSWORD set. An existing account is left as is.
func EnsureDemoUser(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || !strings.EqualFold(cfg.Env, "development") || cfg.DevDemoPassword == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.DevDemoEmail))
	if err := validation.ValidateEmail(email); err != nil {
		return fmt.Errorf("DEV_DEMO_EMAIL: %w", err)
	}

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hashed, err := auth.HashPassword(cfg.DevDemoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	username := validation.NormalizeUsername(email[:strings.LastIndexByte(email, '@')])
	taken, err := users.UsernameTaken(ctx, username, 0)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("demo username %q is already taken", username)
	}

	demo := &models.User{Email: email, Username: username, Password: hashed}
	if err := users.Create(ctx, demo); err != nil {
		return err
	}

	middleware.Logger.Info("development demo user created", "user_id", demo.ID, "email", email)
	return nil
}
