// Package bootstrap wires the database and Redis for command-line tools.
package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"campusconnect/internal/auth"
	"campusconnect/internal/cache"
	"campusconnect/internal/config"
	"campusconnect/internal/database"
	"campusconnect/internal/models"
	"campusconnect/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDepartments loads the built-in department preset.
	SeedDepartments bool
}

// InitRuntime connects to DB and Redis and optionally runs built-in seeding.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SeedDepartments {
		if _, err := seed.LoadDepartments(seed.DefaultPreset); err != nil {
			return nil, nil, fmt.Errorf("failed to load department preset: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevAdmin creates or promotes the configured development admin.
// It does nothing outside development or when DEV_BOOTSTRAP_ADMIN is off.
func EnsureDevAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapAdmin {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevAdminEmail))
	if email == "" {
		email = "admin@campus.local"
	}
	password := cfg.DevAdminPassword
	if password == "" {
		return errors.New("DEV_ADMIN_PASSWORD must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var admin models.Profile
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.Profile{
				Email:    email,
				Password: hashed,
				FullName: "Campus Administrator",
				Role:     models.RoleAdmin,
			}
			return tx.Create(&admin).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&admin).Update("role", models.RoleAdmin).Error
		}
	})
	if err != nil {
		return err
	}

	log.Printf("development admin bootstrap ensured for %s", email)
	return nil
}
