// Package migrations applies the versioned SQL files under migrations/ with
// golang-migrate.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rd-agent/backend/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// DefaultDir is used when MIGRATIONS_DIR is unset.
const DefaultDir = "migrations"

type Runner struct {
	m  *migrate.Migrate
	db *sql.DB
}

func Open(databaseURL, dir string) (*Runner, error) {
	if dir == "" {
		dir = DefaultDir
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load migrations from %s: %w", dir, err)
	}

	return &Runner{m: m, db: db}, nil
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	r.logVersion()
	return nil
}

// Down rolls back the given number of migrations.
func (r *Runner) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	r.logVersion()
	return nil
}

func (r *Runner) Version() (uint, bool, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Force sets the version without running migrations, clearing the dirty flag.
func (r *Runner) Force(version int) error {
	if err := r.m.Force(version); err != nil {
		return fmt.Errorf("migrate force %d: %w", version, err)
	}
	return nil
}

func (r *Runner) logVersion() {
	version, dirty, err := r.Version()
	if err != nil {
		logger.Warn("[Migrate] Could not read schema version", "err", err)
		return
	}
	logger.Info("[Migrate] Schema version", "version", version, "dirty", dirty)
}

// Run opens a runner, applies all pending migrations and closes it again.
func Run(databaseURL, dir string) error {
	r, err := Open(databaseURL, dir)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Up()
}
