package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/johnwards/docseed/internal/digest"
	"github.com/johnwards/docseed/internal/domain"
)

// DocumentStore is the persistence capability the seeding engine writes
// through. Records returned carry their identifier in domain.IDField.
type DocumentStore interface {
	FindOne(ctx context.Context, model string, criteria domain.Record) (domain.Record, error)
	Upsert(ctx context.Context, model string, criteria, data domain.Record) (domain.Record, error)
	SetFields(ctx context.Context, model, id string, fields domain.Record) (domain.Record, error)
	Get(ctx context.Context, model, id string) (domain.Record, error)
	Count(ctx context.Context, model string) (int, error)
}

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteDocumentStore implements DocumentStore backed by SQLite. Each field
// is stored as a row holding the canonical JSON of its value, so equality
// lookups on nested values are exact.
type SQLiteDocumentStore struct {
	db *sql.DB
}

// NewSQLiteDocumentStore creates a new SQLiteDocumentStore.
func NewSQLiteDocumentStore(db *sql.DB) *SQLiteDocumentStore {
	return &SQLiteDocumentStore{db: db}
}

// FindOne returns the oldest document of model whose fields equal every
// entry of criteria.
func (s *SQLiteDocumentStore) FindOne(ctx context.Context, model string, criteria domain.Record) (domain.Record, error) {
	id, err := findID(ctx, s.db, model, criteria)
	if err != nil {
		return nil, err
	}
	return load(ctx, s.db, model, id)
}

// Upsert returns the document matching criteria, creating it from data when
// none exists. Find and create run in one transaction.
func (s *SQLiteDocumentStore) Upsert(ctx context.Context, model string, criteria, data domain.Record) (domain.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert %s: %w", model, err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := findID(ctx, tx, model, criteria)
	switch {
	case errors.Is(err, ErrNotFound):
		id, err = insert(ctx, tx, model, data)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	rec, err := load(ctx, tx, model, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert %s: %w", model, err)
	}
	return rec, nil
}

// SetFields overwrites the given fields of an existing document.
func (s *SQLiteDocumentStore) SetFields(ctx context.Context, model, id string, fields domain.Record) (domain.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin set fields %s: %w", model, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := exists(ctx, tx, model, id); err != nil {
		return nil, err
	}

	ts := now()
	if err := setFields(ctx, tx, id, fields.Without(domain.IDField), ts); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET updated_at = ? WHERE id = ?`, ts, id); err != nil {
		return nil, fmt.Errorf("update document timestamp: %w", err)
	}

	rec, err := load(ctx, tx, model, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit set fields %s: %w", model, err)
	}
	return rec, nil
}

// Get retrieves a single document by identifier.
func (s *SQLiteDocumentStore) Get(ctx context.Context, model, id string) (domain.Record, error) {
	if err := exists(ctx, s.db, model, id); err != nil {
		return nil, err
	}
	return load(ctx, s.db, model, id)
}

// Count returns the number of documents stored for model.
func (s *SQLiteDocumentStore) Count(ctx context.Context, model string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE model = ?`, model).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", model, err)
	}
	return n, nil
}

// findID builds one EXISTS clause per criteria field. Field names are sorted
// so the generated SQL is stable.
func findID(ctx context.Context, q queryer, model string, criteria domain.Record) (string, error) {
	query := `SELECT d.id FROM documents d WHERE d.model = ?`
	args := []any{model}

	fields := make([]string, 0, len(criteria))
	for f := range criteria {
		if f == domain.IDField {
			continue
		}
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var clauses []string
	for _, f := range fields {
		value, err := encode(criteria[f])
		if err != nil {
			return "", fmt.Errorf("encode criteria %s.%s: %w", model, f, err)
		}
		clauses = append(clauses,
			`EXISTS (SELECT 1 FROM document_fields f WHERE f.document_id = d.id AND f.field = ? AND f.value = ?)`)
		args = append(args, f, value)
	}
	if id, ok := criteria.ID(); ok {
		clauses = append(clauses, `d.id = ?`)
		args = append(args, fmt.Sprint(id))
	}
	if len(clauses) > 0 {
		query += ` AND ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY d.rowid ASC LIMIT 1`

	var id string
	err := q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find %s: %w", model, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("find %s: %w", model, err)
	}
	return id, nil
}

// insert creates a document from data. A string identifier already present
// in data is kept, otherwise a UUID is assigned.
func insert(ctx context.Context, q queryer, model string, data domain.Record) (string, error) {
	id := uuid.NewString()
	if given, ok := data.ID(); ok {
		if s, isStr := given.(string); isStr {
			id = s
		}
	}

	ts := now()
	if _, err := q.ExecContext(ctx,
		`INSERT INTO documents (id, model, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, model, ts, ts,
	); err != nil {
		return "", fmt.Errorf("insert %s: %w", model, err)
	}

	if err := setFields(ctx, q, id, data.Without(domain.IDField), ts); err != nil {
		return "", err
	}
	return id, nil
}

func setFields(ctx context.Context, q queryer, id string, fields domain.Record, ts string) error {
	for name, v := range fields {
		value, err := encode(v)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", name, err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO document_fields (document_id, field, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(document_id, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			id, name, value, ts,
		); err != nil {
			return fmt.Errorf("set field %s: %w", name, err)
		}
	}
	return nil
}

func exists(ctx context.Context, q queryer, model, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ? AND model = ?`, id, model).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", model, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s %s: %w", model, id, err)
	}
	return nil
}

// load reads every field of a document into a Record.
func load(ctx context.Context, q queryer, model, id string) (domain.Record, error) {
	rows, err := q.QueryContext(ctx, `SELECT field, value FROM document_fields WHERE document_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", model, id, err)
	}
	defer func() { _ = rows.Close() }()

	rec := domain.Record{domain.IDField: id}
	for rows.Next() {
		var field, raw string
		if err := rows.Scan(&field, &raw); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		v, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode field %s: %w", field, err)
		}
		rec[field] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return rec, nil
}

// decode parses a stored value. Integral numbers come back as int64 and
// all other numbers as float64.
func decode(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return numbers(v), nil
}

func numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = numbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = numbers(item)
		}
		return val
	default:
		return v
	}
}

func encode(v any) (string, error) {
	b, err := digest.CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
