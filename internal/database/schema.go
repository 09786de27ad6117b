package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"breaksphere/internal/config"
	"breaksphere/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes selected by DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema will do for a given config.
type SchemaPlan struct {
	Mode        string
	RunSQL      bool
	AutoMigrate bool
}

// SchemaStatus is the plan plus the ledger state, for cmd/migrate status.
type SchemaStatus struct {
	SchemaPlan
	Environment string
	Applied     []AppliedMigration
	Pending     []Migration
}

// PlanSchema resolves DB_SCHEMA_MODE against the driver and environment.
// The SQL migrations target PostgreSQL, so SQLite always auto-migrates, and
// production-like environments never auto-migrate.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	plan := SchemaPlan{Mode: mode}

	if cfg.DBDriver == "sqlite" {
		plan.AutoMigrate = true
		return plan, nil
	}

	switch env := strings.ToLower(strings.TrimSpace(cfg.Env)); mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeAuto:
		if prodLike(env) {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q", cfg.Env)
		}
		plan.AutoMigrate = true
	case SchemaModeHybrid:
		plan.RunSQL = true
		plan.AutoMigrate = !prodLike(env)
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	return plan, nil
}

func prodLike(env string) bool {
	switch env {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// ApplySchema runs SQL migrations and/or AutoMigrate according to PlanSchema.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		n, err := NewMigrator(db).Up(ctx)
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		if n > 0 {
			middleware.Logger.Info("SQL migrations applied", slog.Int("count", n))
		}
	}

	if plan.AutoMigrate {
		middleware.Logger.Info("Running GORM AutoMigrate",
			slog.String("mode", plan.Mode),
			slog.String("env", cfg.Env),
			slog.String("driver", db.Dialector.Name()),
		)
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan and, when SQL migrations are in play, the ledger.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan, Environment: cfg.Env}
	if !plan.RunSQL {
		return status, nil
	}

	m := NewMigrator(db)
	if status.Applied, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
