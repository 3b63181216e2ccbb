// Package sqlitehistory persists the deployment history in a local sqlite
// database. History is an observability aid: callers treat failures here as
// non-fatal.
package sqlitehistory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ferplaru/ai-playground/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS deployments (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	app_name     TEXT NOT NULL,
	repository   TEXT NOT NULL,
	container_id TEXT NOT NULL,
	host_port    TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMP NOT NULL,
	stopped_at   TIMESTAMP,
	status       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deployments_started_at ON deployments(started_at);
CREATE INDEX IF NOT EXISTS idx_deployments_app_name ON deployments(app_name);
`

// Store is a sqlite-backed HistoryStore.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the history database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// modernc sqlite tolerates a single writer; serialize access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &Store{db: db}, nil
}

// Append inserts one history row.
func (s *Store) Append(ctx context.Context, rec domain.HistoryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (app_name, repository, container_id, host_port, started_at, stopped_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.AppName, rec.Repository, rec.ContainerID, rec.HostPort,
		rec.StartedAt.UTC(), nullableTime(rec.StoppedAt), string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT app_name, repository, container_id, host_port, started_at, stopped_at, status
		 FROM deployments ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var stoppedAt sql.NullTime
		var status string
		if err := rows.Scan(&rec.AppName, &rec.Repository, &rec.ContainerID, &rec.HostPort,
			&rec.StartedAt, &stoppedAt, &status); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if stoppedAt.Valid {
			t := stoppedAt.Time
			rec.StoppedAt = &t
		}
		rec.Status = domain.DeploymentStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkStopped closes the open history row for an app.
func (s *Store) MarkStopped(ctx context.Context, appName string, stoppedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET stopped_at = ?, status = ?
		 WHERE app_name = ? AND stopped_at IS NULL`,
		stoppedAt.UTC(), string(domain.DeploymentStatusStopped), appName)
	if err != nil {
		return fmt.Errorf("failed to mark deployment stopped: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
