// Package migrations embeds the schema of the marketplace store and applies
// it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"affiliate-marketplace/internal/common/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Runner applies the embedded migrations to one database.
type Runner struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRunner(db *sql.DB, log logger.Logger) *Runner {
	return &Runner{db: db, logger: log}
}

func (r *Runner) instance() (*migrate.Migrate, error) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	m, err := r.instance()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info("No pending migrations", nil)
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	version, _, _ := m.Version()
	r.logger.Info("Migrations applied", map[string]interface{}{"version": version})
	return nil
}

// Down rolls back steps migrations, one when steps <= 0.
func (r *Runner) Down(steps int) error {
	m, err := r.instance()
	if err != nil {
		return err
	}

	if steps <= 0 {
		steps = 1
	}

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info("No migrations to roll back", nil)
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}

	r.logger.Info("Migrations rolled back", map[string]interface{}{"steps": steps})
	return nil
}

// Version returns the applied version. An empty database reports 0.
func (r *Runner) Version() (uint, bool, error) {
	m, err := r.instance()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the recorded version without running anything, to clear a
// dirty state.
func (r *Runner) Force(version int) error {
	m, err := r.instance()
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("force migration version: %w", err)
	}
	r.logger.Warn("Migration version forced", map[string]interface{}{"version": version})
	return nil
}
