// Package store persists the structured query index in a relational
// database and serves the prepared queries the linker, indexer, and query
// engine run against it.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS repositories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS indexed_commits (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id     INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	commit_sha  TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'in_progress',
	indexed_at  TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE (repo_id, commit_sha)
);

CREATE TABLE IF NOT EXISTS symbols (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id        INTEGER NOT NULL REFERENCES indexed_commits(id) ON DELETE CASCADE,
	name             TEXT NOT NULL,
	qualified_name   TEXT NOT NULL,
	kind             TEXT NOT NULL,
	file_path        TEXT NOT NULL,
	start_line       INTEGER NOT NULL,
	end_line         INTEGER NOT NULL,
	visibility       TEXT,
	is_async         INTEGER NOT NULL DEFAULT 0,
	is_static        INTEGER NOT NULL DEFAULT 0,
	is_exported      INTEGER NOT NULL DEFAULT 0,
	return_type      TEXT,
	parent_symbol_id INTEGER REFERENCES symbols(id) ON DELETE SET NULL,
	content_hash     TEXT NOT NULL,
	trigram_count    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS symbol_parameters (
	symbol_id       INTEGER NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	type_annotation TEXT,
	is_optional     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol_id, position)
);

CREATE TABLE IF NOT EXISTS symbol_docstrings (
	symbol_id   INTEGER PRIMARY KEY REFERENCES symbols(id) ON DELETE CASCADE,
	doc_type    TEXT NOT NULL,
	raw         TEXT NOT NULL,
	description TEXT
);

CREATE TABLE IF NOT EXISTS symbol_trigrams (
	symbol_id INTEGER NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
	trigram   TEXT NOT NULL,
	PRIMARY KEY (symbol_id, trigram)
);

CREATE TABLE IF NOT EXISTS usages (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id            INTEGER NOT NULL REFERENCES indexed_commits(id) ON DELETE CASCADE,
	file_path            TEXT NOT NULL,
	line                 INTEGER NOT NULL,
	column_number        INTEGER NOT NULL,
	usage_kind           TEXT NOT NULL,
	symbol_name          TEXT NOT NULL,
	enclosing_symbol_id  INTEGER REFERENCES symbols(id) ON DELETE SET NULL,
	definition_symbol_id INTEGER REFERENCES symbols(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS imports (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id        INTEGER NOT NULL REFERENCES indexed_commits(id) ON DELETE CASCADE,
	file_path        TEXT NOT NULL,
	line             INTEGER NOT NULL,
	import_type      TEXT NOT NULL,
	module_specifier TEXT NOT NULL,
	resolved_path    TEXT
);

CREATE TABLE IF NOT EXISTS import_bindings (
	import_id     INTEGER NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	imported_name TEXT NOT NULL,
	local_name    TEXT NOT NULL,
	is_type_only  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (import_id, position)
);

CREATE TABLE IF NOT EXISTS endpoints (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_id       INTEGER NOT NULL REFERENCES indexed_commits(id) ON DELETE CASCADE,
	http_method     TEXT NOT NULL,
	path            TEXT NOT NULL,
	file_path       TEXT NOT NULL,
	start_line      INTEGER NOT NULL,
	end_line        INTEGER NOT NULL,
	framework       TEXT NOT NULL,
	handler_name    TEXT,
	handler_type    TEXT NOT NULL,
	summary         TEXT,
	description     TEXT,
	tags            TEXT,
	middleware      TEXT,
	dependencies    TEXT,
	response_model  TEXT,
	response_status INTEGER,
	body_schema     TEXT
);

CREATE TABLE IF NOT EXISTS endpoint_params (
	endpoint_id     INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	location        TEXT NOT NULL,
	type_annotation TEXT,
	required        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (endpoint_id, position)
);

CREATE INDEX IF NOT EXISTS idx_symbols_commit_name      ON symbols(commit_id, name);
CREATE INDEX IF NOT EXISTS idx_symbols_commit_qualified ON symbols(commit_id, qualified_name);
CREATE INDEX IF NOT EXISTS idx_symbols_commit_file      ON symbols(commit_id, file_path);
CREATE INDEX IF NOT EXISTS idx_usages_commit_name       ON usages(commit_id, symbol_name);
CREATE INDEX IF NOT EXISTS idx_usages_commit_file       ON usages(commit_id, file_path);
CREATE INDEX IF NOT EXISTS idx_usages_definition        ON usages(definition_symbol_id);
CREATE INDEX IF NOT EXISTS idx_usages_enclosing         ON usages(enclosing_symbol_id);
CREATE INDEX IF NOT EXISTS idx_imports_commit_file      ON imports(commit_id, file_path);
CREATE INDEX IF NOT EXISTS idx_imports_commit_module    ON imports(commit_id, module_specifier);
CREATE INDEX IF NOT EXISTS idx_trigrams_trigram         ON symbol_trigrams(trigram);
CREATE INDEX IF NOT EXISTS idx_endpoints_commit         ON endpoints(commit_id);
`

// Open opens (or creates) the SQI database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway and a single
	// connection keeps transactions from contending on the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory SQI database, used by tests.
func OpenMemory(ctx context.Context) (*Store, error) {
	return Open(ctx, ":memory:")
}
