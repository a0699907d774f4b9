// Package migration applies the moment store schema with golang-migrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-hclog"
)

// Migrator is the subset of *migrate.Migrate used here.
type Migrator interface {
	Up() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
}

// migrateMaker builds a Migrator; replaced in tests.
type migrateMaker func(db *sql.DB, migrationsFS fs.FS) (Migrator, error)

func defaultMakeMigrator(db *sql.DB, migrationsFS fs.FS) (Migrator, error) {
	src, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("iofs source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "moments_schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations from migrationsFS, whose root holds the
// numbered *.sql files, and returns the resulting schema version.
func Up(db *sql.DB, migrationsFS fs.FS, logger hclog.Logger) (uint, error) {
	return up(db, migrationsFS, defaultMakeMigrator, logger)
}

// Down rolls back the given number of migrations.
func Down(db *sql.DB, migrationsFS fs.FS, steps int, logger hclog.Logger) (uint, error) {
	return down(db, migrationsFS, steps, defaultMakeMigrator, logger)
}

func up(db *sql.DB, migrationsFS fs.FS, maker migrateMaker, logger hclog.Logger) (uint, error) {
	m, err := maker(db, migrationsFS)
	if err != nil {
		return 0, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return version(m, logger)
}

func down(db *sql.DB, migrationsFS fs.FS, steps int, maker migrateMaker, logger hclog.Logger) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("migrate down: steps must be positive, got %d", steps)
	}
	m, err := maker(db, migrationsFS)
	if err != nil {
		return 0, err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate down: %w", err)
	}
	return version(m, logger)
}

func version(m Migrator, logger hclog.Logger) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migrate version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	if logger != nil {
		logger.Info("schema migrated", "version", v)
	}
	return v, nil
}
