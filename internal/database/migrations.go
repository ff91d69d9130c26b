package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
var migrations = [][]string{
	// Migration 1: registered models and their documents
	{
		`CREATE TABLE models (
			name TEXT PRIMARY KEY,
			descriptor TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE documents (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_documents_model ON documents(model)`,

		// value holds the canonical JSON encoding of the field value.
		`CREATE TABLE document_fields (
			document_id TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (document_id, field),
			FOREIGN KEY (document_id) REFERENCES documents(id)
		)`,
		`CREATE INDEX idx_document_fields_value ON document_fields(field, value)`,
	},

	// Migration 2: seeding run log
	{
		`CREATE TABLE seed_runs (
			id TEXT PRIMARY KEY,
			environment TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'RUNNING',
			record_count INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE INDEX idx_seed_runs_started ON seed_runs(started_at)`,
	},
}
