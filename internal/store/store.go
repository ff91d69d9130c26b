package store

import "database/sql"

// Store holds all sub-stores used by the application.
type Store struct {
	DB        *sql.DB
	Documents DocumentStore
	Models    ModelStore
	Runs      RunStore
}

// New creates a Store with all sub-stores initialized.
func New(db *sql.DB) *Store {
	return &Store{
		DB:        db,
		Documents: NewSQLiteDocumentStore(db),
		Models:    NewSQLiteModelStore(db),
		Runs:      NewSQLiteRunStore(db),
	}
}
