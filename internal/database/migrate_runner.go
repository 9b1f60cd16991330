package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"campusconnect/internal/middleware"

	"gorm.io/gorm"
)

// schemaMigration records an applied migration along with the checksum of
// the up script it ran, so edited migrations are caught on the next run.
type schemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64"`
	AppliedAt time.Time `gorm:"not null;index"`
}

func (schemaMigration) TableName() string { return "schema_migrations" }

func ensureMigrationTable(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *gorm.DB) ([]schemaMigration, error) {
	var rows []schemaMigration
	err := db.WithContext(ctx).Order("version").Find(&rows).Error
	if err != nil && isMissingTable(err) {
		return nil, nil
	}
	return rows, err
}

// isMissingTable matches both the postgres and sqlite wording.
func isMissingTable(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// RunMigrations applies every embedded migration that has not run yet.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	ms, err := Migrations()
	if err != nil {
		return err
	}
	return applyMigrations(ctx, db, ms)
}

func applyMigrations(ctx context.Context, db *gorm.DB, ms []Migration) error {
	if err := ensureMigrationTable(ctx, db); err != nil {
		return err
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	if err := verifyApplied(applied, ms); err != nil {
		return err
	}

	done := make(map[int]bool, len(applied))
	for _, row := range applied {
		done[row.Version] = true
	}

	for _, m := range ms {
		if done[m.Version] {
			continue
		}
		start := time.Now()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.Up).Error; err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:   m.Version,
				Name:      m.Name,
				Checksum:  m.Checksum,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", m, err)
		}
		middleware.Logger.Info("Applied migration",
			slog.String("migration", m.String()),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}

// verifyApplied refuses to continue when the database has seen migrations
// this binary does not ship, or ones whose up script has since changed.
func verifyApplied(applied []schemaMigration, registered []Migration) error {
	var problems []string
	for _, row := range applied {
		m, ok := findMigration(registered, row.Version)
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%06d_%s is not known to this build", row.Version, row.Name))
		case row.Checksum != "" && row.Checksum != m.Checksum:
			problems = append(problems, fmt.Sprintf("%s was edited after it was applied", m))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("schema_migrations out of sync: %s", strings.Join(problems, "; "))
}

// PendingMigrations lists embedded migrations not yet recorded as applied,
// together with the applied versions.
func PendingMigrations(ctx context.Context, db *gorm.DB) ([]Migration, []int, error) {
	ms, err := Migrations()
	if err != nil {
		return nil, nil, err
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, nil, err
	}

	versions := make([]int, 0, len(applied))
	for _, row := range applied {
		versions = append(versions, row.Version)
	}
	var pending []Migration
	for _, m := range ms {
		if !slices.Contains(versions, m.Version) {
			pending = append(pending, m)
		}
	}
	return pending, versions, nil
}

var errNotApplied = errors.New("migration has not been applied")

// RollbackMigration runs the down script for one applied version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	ms, err := Migrations()
	if err != nil {
		return err
	}
	return rollback(ctx, db, ms, version)
}

func rollback(ctx context.Context, db *gorm.DB, ms []Migration, version int) error {
	m, ok := findMigration(ms, version)
	if !ok {
		return fmt.Errorf("no migration with version %06d", version)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("version = ?", version).Delete(&schemaMigration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}
		return tx.Exec(m.Down).Error
	})
	if err != nil {
		return fmt.Errorf("rollback %s: %w", m, err)
	}
	middleware.Logger.Info("Rolled back migration", slog.String("migration", m.String()))
	return nil
}
