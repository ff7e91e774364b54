// Package history keeps a local record of where skills were installed from
// and how their runs went.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/llm-inline/llmi/pkg/db"
	"github.com/llm-inline/llmi/pkg/engine"
	"github.com/llm-inline/llmi/pkg/skills"
)

// DefaultRunLimit bounds Runs when no limit is given
const DefaultRunLimit = 20

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoInstallRecord is returned when a skill has no recorded install source
var ErrNoInstallRecord = errors.New("no install record")

// Install is the recorded provenance of an installed skill
type Install struct {
	Name        string
	Version     string
	Source      string
	Directory   string
	InstalledAt time.Time
}

// Run is one recorded skill execution
type Run struct {
	ID         string
	Name       string
	Version    string
	Success    bool
	Diagnostic string
	Duration   time.Duration
	StartedAt  time.Time
}

type dbInstall struct {
	Name        string `db:"name"`
	Version     string `db:"version"`
	Source      string `db:"source"`
	Directory   string `db:"directory"`
	InstalledAt string `db:"installed_at"`
}

type dbRun struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Version    string `db:"version"`
	Success    bool   `db:"success"`
	Diagnostic string `db:"diagnostic"`
	DurationMS int64  `db:"duration_ms"`
	StartedAt  string `db:"started_at"`
}

// Store is the SQLite-backed history
type Store struct {
	db *sqlx.DB
}

var (
	_ skills.InstallRecorder = (*Store)(nil)
	_ engine.RunRecorder     = (*Store)(nil)
)

// Open opens the history database at path, creating and migrating it as needed
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := db.Open(ctx, path, Migrations()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}
	return &Store{db: conn}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordInstall upserts the provenance of a successful install
func (s *Store) RecordInstall(ctx context.Context, event skills.InstallEvent) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO skill_installs (name, version, source, directory, installed_at)
		VALUES (:name, :version, :source, :directory, :installed_at)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			source = excluded.source,
			directory = excluded.directory,
			installed_at = excluded.installed_at
	`, dbInstall{
		Name:        event.Name,
		Version:     event.Version,
		Source:      event.Source,
		Directory:   event.Directory,
		InstalledAt: formatTime(event.InstalledAt),
	})
	return errors.Wrapf(err, "failed to record install of %s", event.Name)
}

// RecordRun stores the outcome of one execution
func (s *Store) RecordRun(ctx context.Context, event engine.RunEvent) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO skill_runs (id, name, version, success, diagnostic, duration_ms, started_at)
		VALUES (:id, :name, :version, :success, :diagnostic, :duration_ms, :started_at)
	`, dbRun{
		ID:         event.ID,
		Name:       event.Name,
		Version:    event.Version,
		Success:    event.Success,
		Diagnostic: event.Diagnostic,
		DurationMS: event.Duration.Milliseconds(),
		StartedAt:  formatTime(event.StartedAt),
	})
	return errors.Wrapf(err, "failed to record run of %s", event.Name)
}

// InstallFor returns the recorded install of name, or ErrNoInstallRecord
func (s *Store) InstallFor(ctx context.Context, name string) (*Install, error) {
	var row dbInstall
	err := s.db.GetContext(ctx, &row, "SELECT name, version, source, directory, installed_at FROM skill_installs WHERE name = ?", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNoInstallRecord, "skill '%s'", name)
		}
		return nil, errors.Wrapf(err, "failed to load install record of %s", name)
	}

	installedAt, err := parseTime(row.InstalledAt)
	if err != nil {
		return nil, err
	}
	return &Install{
		Name:        row.Name,
		Version:     row.Version,
		Source:      row.Source,
		Directory:   row.Directory,
		InstalledAt: installedAt,
	}, nil
}

// ForgetInstall drops the install record of name. Run history is kept.
func (s *Store) ForgetInstall(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM skill_installs WHERE name = ?", name)
	return errors.Wrapf(err, "failed to forget install of %s", name)
}

// Runs returns the most recent runs, newest first. An empty name means every
// skill; a non-positive limit means DefaultRunLimit.
func (s *Store) Runs(ctx context.Context, name string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	query := "SELECT id, name, version, success, diagnostic, duration_ms, started_at FROM skill_runs"
	args := []any{}
	if name != "" {
		query += " WHERE name = ?"
		args = append(args, name)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	var rows []dbRun
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to query skill runs")
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		startedAt, err := parseTime(row.StartedAt)
		if err != nil {
			// skip corrupted entries
			continue
		}
		runs = append(runs, Run{
			ID:         row.ID,
			Name:       row.Name,
			Version:    row.Version,
			Success:    row.Success,
			Diagnostic: row.Diagnostic,
			Duration:   time.Duration(row.DurationMS) * time.Millisecond,
			StartedAt:  startedAt,
		})
	}
	return runs, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return t, errors.Wrapf(err, "failed to parse timestamp %q", s)
	}
	return t, nil
}
