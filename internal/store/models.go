package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/johnwards/docseed/internal/domain"
)

// ModelStore persists registered model descriptors.
type ModelStore interface {
	Save(ctx context.Context, desc domain.ModelDescriptor) error
	List(ctx context.Context) ([]domain.ModelDescriptor, error)
}

// SQLiteModelStore implements ModelStore backed by SQLite.
type SQLiteModelStore struct {
	db *sql.DB
}

// NewSQLiteModelStore creates a new SQLiteModelStore.
func NewSQLiteModelStore(db *sql.DB) *SQLiteModelStore {
	return &SQLiteModelStore{db: db}
}

// Save inserts or replaces the descriptor stored under desc.Name.
func (s *SQLiteModelStore) Save(ctx context.Context, desc domain.ModelDescriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("save model: empty name")
	}
	body, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode model %s: %w", desc.Name, err)
	}

	ts := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO models (name, descriptor, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET descriptor = excluded.descriptor, updated_at = excluded.updated_at`,
		desc.Name, string(body), ts, ts,
	); err != nil {
		return fmt.Errorf("save model %s: %w", desc.Name, err)
	}
	return nil
}

// List returns every stored descriptor ordered by name.
func (s *SQLiteModelStore) List(ctx context.Context) ([]domain.ModelDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, descriptor FROM models ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var models []domain.ModelDescriptor
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		var desc domain.ModelDescriptor
		if err := json.Unmarshal([]byte(body), &desc); err != nil {
			return nil, fmt.Errorf("decode model %s: %w", name, err)
		}
		models = append(models, desc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return models, nil
}
