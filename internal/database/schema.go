package database

import (
	"context"
	"fmt"
	"strings"

	"fixmystuff/internal/config"
	"fixmystuff/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema would do for a configuration.
type SchemaPlan struct {
	Mode    string
	RunSQL  bool
	RunAuto bool
	Applied []int
	Pending []Migration
}

func schemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

// schemaPolicy decides which schema steps run. The embedded SQL targets
// PostgreSQL, so sqlite databases are always built with AutoMigrate.
func schemaPolicy(cfg *config.Config) (runSQL, runAuto bool, err error) {
	mode := schemaMode(cfg)
	if cfg.DBDriver == "sqlite" {
		if mode == SchemaModeSQL {
			return false, false, fmt.Errorf("DB_SCHEMA_MODE=sql needs postgres, DB_DRIVER is sqlite")
		}
		return false, true, nil
	}

	production := cfg.IsProduction()
	switch mode {
	case SchemaModeHybrid:
		return true, !production, nil
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if production && !cfg.DBAutoMigrateAllowDestructive {
			return false, false, fmt.Errorf("DB_SCHEMA_MODE=auto in production requires DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true")
		}
		return false, true, nil
	}
	return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
}

// ApplySchema brings the schema up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}
	if runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return err
		}
	}
	if runAuto {
		middleware.Logger.Info("auto-migrating models", "mode", schemaMode(cfg), "env", cfg.Env)
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// Plan reports the schema policy and, when SQL migrations run, which
// versions are applied and which are pending.
func Plan(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaPlan, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}
	plan := &SchemaPlan{Mode: schemaMode(cfg), RunSQL: runSQL, RunAuto: runAuto}
	if !runSQL {
		return plan, nil
	}

	if plan.Applied, err = appliedVersions(ctx, db); err != nil {
		return nil, err
	}
	plan.Pending = pendingMigrations(plan.Applied, migrations)
	return plan, nil
}
