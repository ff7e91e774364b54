package db

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Migration is one schema change, versioned by timestamp (YYYYMMDDHHmmss)
type Migration struct {
	Version     int64
	Description string
	Up          func(*sql.Tx) error
}

// MigrationRunner applies migrations and tracks them in schema_migrations
type MigrationRunner struct {
	db *sqlx.DB
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *sqlx.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

// Run applies every migration not yet recorded, oldest first
func (r *MigrationRunner) Run(ctx context.Context, migrations []Migration) error {
	if err := r.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := r.AppliedVersions(ctx)
	if err != nil {
		return err
	}

	pending := slices.Clone(migrations)
	slices.SortFunc(pending, func(a, b Migration) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})

	for _, m := range pending {
		if slices.Contains(applied, m.Version) {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return errors.Wrapf(err, "failed to apply migration %d (%s)", m.Version, m.Description)
		}
	}
	return nil
}

// AppliedVersions returns the recorded migration versions in ascending order
func (r *MigrationRunner) AppliedVersions(ctx context.Context) ([]int64, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	var versions []int64
	if err := r.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, errors.Wrap(err, "failed to list applied migrations")
	}
	return versions, nil
}

func (r *MigrationRunner) ensureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL,
			description TEXT
		)
	`)
	return errors.Wrap(err, "failed to create schema_migrations table")
}

func (r *MigrationRunner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := m.Up(tx.Tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
		m.Version, time.Now().UTC(), m.Description); err != nil {
		return errors.Wrap(err, "failed to record migration")
	}

	return errors.Wrap(tx.Commit(), "failed to commit migration")
}
