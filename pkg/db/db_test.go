package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTable(version int64, name string) Migration {
	return Migration{
		Version:     version,
		Description: "create " + name,
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE TABLE " + name + " (id INTEGER PRIMARY KEY)")
			return err
		},
	}
}

func tableExists(t *testing.T, path, name string) bool {
	t.Helper()
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var exists bool
	require.NoError(t, db.Get(&exists, "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name=?", name))
	return exists
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "llmi.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.Get(&mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)

	var foreignKeys int
	require.NoError(t, db.Get(&foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, foreignKeys)
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".llmi", "llmi.db"), path)
}

func TestOpenRunsMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "llmi.db")

	// declared out of order on purpose
	db, err := Open(ctx, path, createTable(20250102000000, "second"), createTable(20250101000000, "first"))
	require.NoError(t, err)

	versions, err := NewMigrationRunner(db).AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{20250101000000, 20250102000000}, versions)
	require.NoError(t, db.Close())

	assert.True(t, tableExists(t, path, "first"))
	assert.True(t, tableExists(t, path, "second"))
}

func TestMigrationRunnerIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "llmi.db"))
	require.NoError(t, err)
	defer db.Close()

	runs := 0
	m := Migration{
		Version:     20250101000000,
		Description: "count runs",
		Up: func(*sql.Tx) error {
			runs++
			return nil
		},
	}

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(ctx, []Migration{m}))
	require.NoError(t, runner.Run(ctx, []Migration{m}))
	assert.Equal(t, 1, runs)
}

func TestMigrationRunnerFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "llmi.db"))
	require.NoError(t, err)
	defer db.Close()

	broken := Migration{
		Version:     20250101000000,
		Description: "half applied",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE partial (id INTEGER)"); err != nil {
				return err
			}
			return errors.New("boom")
		},
	}

	runner := NewMigrationRunner(db)
	err = runner.Run(ctx, []Migration{broken})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "half applied")

	versions, err := runner.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)

	var exists bool
	require.NoError(t, db.Get(&exists, "SELECT COUNT(*) > 0 FROM sqlite_master WHERE name='partial'"))
	assert.False(t, exists)
}
