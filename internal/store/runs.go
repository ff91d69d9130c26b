package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/johnwards/docseed/internal/domain"
)

// RunStore records the outcome of seeding runs.
type RunStore interface {
	Start(ctx context.Context, environment string) (*domain.SeedRun, error)
	Finish(ctx context.Context, id string, recordCount int, runErr error) (*domain.SeedRun, error)
	Get(ctx context.Context, id string) (*domain.SeedRun, error)
	List(ctx context.Context, limit int) ([]*domain.SeedRun, error)
}

// SQLiteRunStore implements RunStore backed by SQLite.
type SQLiteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore creates a new SQLiteRunStore.
func NewSQLiteRunStore(db *sql.DB) *SQLiteRunStore {
	return &SQLiteRunStore{db: db}
}

// Start records a new run in the RUNNING state.
func (s *SQLiteRunStore) Start(ctx context.Context, environment string) (*domain.SeedRun, error) {
	id := uuid.NewString()
	ts := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO seed_runs (id, environment, status, started_at) VALUES (?, ?, ?, ?)`,
		id, environment, domain.RunRunning, ts,
	); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return &domain.SeedRun{ID: id, Environment: environment, Status: domain.RunRunning, StartedAt: ts}, nil
}

// Finish marks a run COMPLETE, or FAILED when runErr is non-nil.
func (s *SQLiteRunStore) Finish(ctx context.Context, id string, recordCount int, runErr error) (*domain.SeedRun, error) {
	status := domain.RunComplete
	var errText sql.NullString
	if runErr != nil {
		status = domain.RunFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE seed_runs SET status = ?, record_count = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, recordCount, errText, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Get retrieves a run by ID.
func (s *SQLiteRunStore) Get(ctx context.Context, id string) (*domain.SeedRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, environment, status, record_count, error, started_at, finished_at FROM seed_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first.
func (s *SQLiteRunStore) List(ctx context.Context, limit int) ([]*domain.SeedRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, environment, status, record_count, error, started_at, finished_at
		 FROM seed_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*domain.SeedRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.SeedRun, error) {
	var run domain.SeedRun
	var errText, finishedAt sql.NullString
	if err := row.Scan(&run.ID, &run.Environment, &run.Status, &run.RecordCount, &errText, &run.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Error = errText.String
	run.FinishedAt = finishedAt.String
	return &run, nil
}
