package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"campusconnect/internal/config"
	"campusconnect/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted in DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

var prodLikeEnvs = []string{"production", "prod", "staging", "stage"}

// SchemaStatus is what `campus-migrate status` prints.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// schemaPlan decides which of the two schema mechanisms run for a config.
// Hybrid runs the SQL migrations everywhere and lets AutoMigrate fill gaps
// only outside production-like environments.
type schemaPlan struct {
	mode     string
	env      string
	sql      bool
	auto     bool
	override bool
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	p := schemaPlan{
		mode:     strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		env:      cfg.Env,
		override: cfg.DBAutoMigrateAllowDestructive,
	}
	if p.mode == "" {
		p.mode = SchemaModeHybrid
	}
	prod := slices.Contains(prodLikeEnvs, strings.ToLower(strings.TrimSpace(cfg.Env)))

	switch p.mode {
	case SchemaModeSQL:
		p.sql = true
	case SchemaModeHybrid:
		p.sql, p.auto = true, !prod
	case SchemaModeAuto:
		if prod && !p.override {
			return p, fmt.Errorf("DB_SCHEMA_MODE=auto is refused in %q unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		p.auto = true
	default:
		return p, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", p.mode)
	}
	return p, nil
}

// ApplySchema brings the campus tables up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	p, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if p.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if !p.auto {
		return nil
	}

	if p.mode == SchemaModeAuto && p.override {
		middleware.Logger.Warn("AutoMigrate running with DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", slog.String("env", p.env))
	}
	middleware.Logger.Info("Running AutoMigrate",
		slog.String("mode", p.mode),
		slog.Int("models", len(PersistentModels())))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the plan for cfg and, when SQL migrations are part
// of it, which versions are applied and pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	p, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{
		Mode:               p.mode,
		Environment:        p.env,
		WillRunSQL:         p.sql,
		WillRunAutoMigrate: p.auto,
	}
	if !p.sql {
		return status, nil
	}

	status.PendingMigrations, status.AppliedVersions, err = PendingMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	return status, nil
}
