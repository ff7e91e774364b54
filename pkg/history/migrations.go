package history

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/llm-inline/llmi/pkg/db"
)

// Migrations returns the history schema in version order
func Migrations() []db.Migration {
	return []db.Migration{
		{
			Version:     20250601000001,
			Description: "Create skill_installs table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS skill_installs (
						name TEXT PRIMARY KEY,
						version TEXT NOT NULL DEFAULT '',
						source TEXT NOT NULL,
						directory TEXT NOT NULL,
						installed_at TEXT NOT NULL
					)
				`)
				return errors.Wrap(err, "failed to create skill_installs table")
			},
		},
		{
			Version:     20250601000002,
			Description: "Create skill_runs table",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS skill_runs (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						version TEXT NOT NULL DEFAULT '',
						success INTEGER NOT NULL,
						diagnostic TEXT NOT NULL DEFAULT '',
						duration_ms INTEGER NOT NULL,
						started_at TEXT NOT NULL
					)
				`); err != nil {
					return errors.Wrap(err, "failed to create skill_runs table")
				}
				_, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_skill_runs_name_started ON skill_runs(name, started_at DESC)")
				return errors.Wrap(err, "failed to create skill_runs index")
			},
		},
	}
}
