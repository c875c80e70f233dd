package scheduler

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/a9lim/shannon/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = "2006-01-02T15:04:05.000Z"

// ErrDuplicateName is returned by AddJob when a job with that name already exists.
var ErrDuplicateName = errors.New("scheduler: job name already exists")

// ErrInvalidExpr is returned by AddJob when the cron expression doesn't parse.
var ErrInvalidExpr = errors.New("scheduler: invalid cron expression")

// Store is the SQLite-backed CRUD layer for scheduled jobs.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the scheduler database at path and
// applies pending migrations.
func OpenStore(path string) (*Store, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := storage.Migrate(db, sub); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// AddJob validates expr, insists on a unique name, and inserts a new
// enabled job.
func (s *Store) AddJob(ctx context.Context, name, expr, action string) (*Job, error) {
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExpr, expr)
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_jobs WHERE name = ?`, name).Scan(&exists); err != nil {
		return nil, fmt.Errorf("scheduler: check name: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	job := &Job{
		ID:      uuid.NewString(),
		Name:    name,
		Expr:    expr,
		Action:  action,
		Enabled: true,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, name, expr, action, enabled)
		VALUES (?, ?, ?, ?, 1)
	`, job.ID, job.Name, job.Expr, job.Action)
	if err != nil {
		return nil, fmt.Errorf("scheduler: insert: %w", err)
	}
	return job, nil
}

// RemoveJob deletes a job by name and reports whether it existed.
func (s *Store) RemoveJob(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("scheduler: remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListJobs returns every job, enabled or not.
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, expr, action, enabled, last_run, created_at
		FROM scheduled_jobs ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// listEnabled returns only enabled jobs, used by the dispatch loop.
func (s *Store) listEnabled(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, expr, action, enabled, last_run, created_at
		FROM scheduled_jobs WHERE enabled = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list enabled: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// markRun atomically sets last_run = at only if the job's current last_run
// is unchanged since it was read, guaranteeing at-most-one dispatch per tick.
func (s *Store) markRun(ctx context.Context, id string, previous *time.Time, at time.Time) (bool, error) {
	var res sql.Result
	var err error
	if previous == nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE scheduled_jobs SET last_run = ? WHERE id = ? AND last_run IS NULL
		`, at.UTC().Format(timeLayout), id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE scheduled_jobs SET last_run = ? WHERE id = ? AND last_run = ?
		`, at.UTC().Format(timeLayout), id, previous.UTC().Format(timeLayout))
	}
	if err != nil {
		return false, fmt.Errorf("scheduler: mark run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanJob(rows *sql.Rows) (*Job, error) {
	var j Job
	var enabled int
	var lastRun, createdAt sql.NullString
	if err := rows.Scan(&j.ID, &j.Name, &j.Expr, &j.Action, &enabled, &lastRun, &createdAt); err != nil {
		return nil, fmt.Errorf("scheduler: scan: %w", err)
	}
	j.Enabled = enabled != 0
	if lastRun.Valid {
		t, err := time.Parse(timeLayout, lastRun.String)
		if err == nil {
			j.LastRun = &t
		}
	}
	if createdAt.Valid {
		t, _ := time.Parse(timeLayout, createdAt.String)
		j.CreatedAt = t
	}
	return &j, nil
}
