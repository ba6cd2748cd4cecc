// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/behemotion/docbro/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

// handle wraps a single-writer sqlite connection the way EmbeddedBackend
// wrapped a CozoDB handle: a mutex-guarded *sql.DB with idempotent schema
// creation and a closed flag, adapted here to a relational, foreign-keyed
// schema instead of a Datalog store.
type handle struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

func openHandle(path string) (*handle, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.NewDatabaseError(
			"Cannot open database",
			fmt.Sprintf("Failed to open %s", path),
			"Check file permissions and available disk space",
			err,
		)
	}
	db.SetMaxOpenConns(1) // single-writer per registry/project database
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, errors.NewDatabaseError(
			"Cannot configure database",
			"Failed to set required pragmas",
			"This is a bug. Please report it with your environment details",
			err,
		)
	}
	return &handle{db: db}, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.db.Close()
}

const registrySchema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	settings TEXT NOT NULL DEFAULT '{}',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_type ON projects(type);
CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);

CREATE TABLE IF NOT EXISTS upload_operations (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	source TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	conflict_policy TEXT NOT NULL DEFAULT 'ask',
	files_total INTEGER NOT NULL DEFAULT 0,
	files_processed INTEGER NOT NULL DEFAULT 0,
	files_succeeded INTEGER NOT NULL DEFAULT 0,
	files_failed INTEGER NOT NULL DEFAULT 0,
	files_skipped INTEGER NOT NULL DEFAULT 0,
	bytes_total INTEGER NOT NULL DEFAULT 0,
	bytes_processed INTEGER NOT NULL DEFAULT 0,
	current_file TEXT NOT NULL DEFAULT '',
	current_stage TEXT NOT NULL DEFAULT '',
	errors TEXT NOT NULL DEFAULT '[]',
	started_at TEXT,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_upload_ops_project ON upload_operations(project_id);
CREATE INDEX IF NOT EXISTS idx_upload_ops_status ON upload_operations(status);

CREATE TABLE IF NOT EXISTS project_settings (
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (project_id, key)
);
`

// ensureRegistrySchema is idempotent and safe to call on every open.
func (h *handle) ensureRegistrySchema() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.db.Exec(registrySchema); err != nil {
		return errors.NewDatabaseError(
			"Cannot initialize registry schema",
			"Failed to create registry tables",
			"This is a bug. Please report it with your environment details",
			err,
		)
	}
	return nil
}

const storageProjectSchema = `
CREATE TABLE IF NOT EXISTS storage_files (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	mime_type TEXT NOT NULL,
	checksum TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	upload_source TEXT NOT NULL DEFAULT '{}',
	upload_date TEXT NOT NULL,
	last_accessed TEXT,
	access_count INTEGER NOT NULL DEFAULT 0,
	is_compressed INTEGER NOT NULL DEFAULT 0,
	compression_ratio REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_storage_files_filename ON storage_files(filename);

CREATE TABLE IF NOT EXISTS file_inventory (
	file_id TEXT PRIMARY KEY REFERENCES storage_files(id) ON DELETE CASCADE,
	tags_text TEXT NOT NULL DEFAULT '',
	metadata_text TEXT NOT NULL DEFAULT '',
	content_text TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT ''
);
`

const dataProjectSchema = `
CREATE TABLE IF NOT EXISTS data_documents (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	source_path TEXT NOT NULL,
	upload_source TEXT NOT NULL DEFAULT '{}',
	processed_date TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	character_count INTEGER NOT NULL DEFAULT 0,
	language TEXT,
	embedding_model TEXT NOT NULL,
	chunk_size INTEGER NOT NULL,
	chunk_overlap INTEGER NOT NULL,
	processing_success INTEGER NOT NULL DEFAULT 1,
	processing_errors TEXT NOT NULL DEFAULT '[]',
	quality_score REAL
);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES data_documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	content TEXT NOT NULL,
	UNIQUE(document_id, chunk_index)
);
`

func (h *handle) ensureTypeSchema(ddl string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.db.Exec(ddl); err != nil {
		return errors.NewDatabaseError(
			"Cannot initialize project schema",
			"Failed to create project-specific tables",
			"This is a bug. Please report it with your environment details",
			err,
		)
	}
	return nil
}
