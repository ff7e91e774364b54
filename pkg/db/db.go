// Package db opens the local SQLite database that records skill installs and
// runs, and applies its schema migrations.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// FileName is the database file inside the llmi home directory
const FileName = "llmi.db"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=memory",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// DefaultPath returns ~/.llmi/llmi.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".llmi", FileName), nil
}

// Open opens or creates the database at path, configures it for WAL mode and
// applies any pending migrations.
func Open(ctx context.Context, path string, migrations ...Migration) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if len(migrations) > 0 {
		if err := NewMigrationRunner(db).Run(ctx, migrations); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

func configure(ctx context.Context, db *sqlx.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute %s", pragma)
		}
	}

	// a single connection keeps the pragmas in effect for every statement
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.GetContext(ctx, &journalMode, "PRAGMA journal_mode"); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if !strings.EqualFold(journalMode, "wal") {
		return errors.Errorf("WAL mode not enabled, current mode: %s", journalMode)
	}
	return nil
}
