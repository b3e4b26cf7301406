// Package seed creates demo accounts and community fixes for development
// and testing databases.
package seed

import (
	"context"
	"fmt"
	"math/rand"

	"fixmystuff/internal/cache"
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers  int
	NumFixes  int
	MaxDays   int
	BatchSize int
	DryRun    bool
	// RandomSeed makes a run reproducible; zero seeds from the clock.
	RandomSeed int64
}

// Result lists what a run created.
type Result struct {
	Users []*models.User
	Fixes []*models.FixRequest
}

// Seeder populates a database through a Factory.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder returns a Seeder for db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Run creates opts.NumUsers users and opts.NumFixes completed fixes spread
// across them, then drops the cached community feed.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	middleware.Logger.Info("seeding database", "users", s.opts.NumUsers, "fixes", s.opts.NumFixes, "dry_run", s.opts.DryRun)

	res := &Result{}
	for i := 0; i < s.opts.NumUsers; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to create user: %w", err)
		}
		res.Users = append(res.Users, u)
	}

	if s.opts.NumFixes > 0 && len(res.Users) == 0 {
		return res, fmt.Errorf("cannot seed %d fixes without users", s.opts.NumFixes)
	}

	// #nosec G404: acceptable for seeding
	pick := rand.New(rand.NewSource(s.factory.seed + 2))
	for i := 0; i < s.opts.NumFixes; i++ {
		owner := res.Users[pick.Intn(len(res.Users))]
		fix, err := s.factory.BuildFixRequest(ctx, owner)
		if err != nil {
			return res, fmt.Errorf("failed to build fix request: %w", err)
		}
		res.Fixes = append(res.Fixes, fix)
	}
	if err := s.factory.CreateFixRequestsBatch(ctx, res.Fixes); err != nil {
		return res, fmt.Errorf("failed to create fix requests: %w", err)
	}

	cache.InvalidateRecentFixes(ctx)
	middleware.Logger.Info("database seeding completed", "users", len(res.Users), "fixes", len(res.Fixes))
	return res, nil
}

// ApplyPreset runs the named preset from the embedded presets file.
func (s *Seeder) ApplyPreset(ctx context.Context, name string) (*Result, error) {
	presets, err := Presets()
	if err != nil {
		return nil, err
	}
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown seed preset %q", name)
	}

	opts := s.opts
	opts.NumUsers, opts.NumFixes = p.Users, p.Fixes
	if p.MaxDays > 0 {
		opts.MaxDays = p.MaxDays
	}
	middleware.Logger.Info("applying seed preset", "preset", name, "description", p.Description)
	return NewSeeder(s.db, opts).Run(ctx)
}

// ClearAll deletes every user, fix request and image record and drops the
// cached users and feed pages that pointed at them.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		return nil
	}
	middleware.Logger.Info("clearing existing data")

	if err := s.deleteRows(ctx); err != nil {
		return err
	}
	cache.InvalidateAllUsers(ctx)
	cache.InvalidateRecentFixes(ctx)
	return nil
}

func (s *Seeder) deleteRows(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE image_variants, images, fix_requests, users RESTART IDENTITY CASCADE`).Error
	}

	all := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped()
	for _, model := range []any{&models.ImageVariant{}, &models.Image{}, &models.FixRequest{}, &models.User{}} {
		if err := all.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
