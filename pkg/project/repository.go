// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"database/sql"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

// Repository is the sole component allowed to write to the registry or
// per-project databases. Handlers and the manager read
// through it; nothing else touches sqlite directly.
type Repository struct {
	layout   Layout
	registry *handle

	mu       sync.Mutex
	projects map[string]*handle // open per-project database handles, by name
}

// NewRepository opens (creating if absent) the registry database at
// layout.RegistryPath and ensures its schema exists.
func NewRepository(layout Layout) (*Repository, error) {
	if err := os.MkdirAll(layout.DataDir, 0o750); err != nil {
		return nil, errors.NewPermissionError(
			"Cannot create data directory",
			"Permission denied creating "+layout.DataDir,
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}
	reg, err := openHandle(layout.RegistryPath())
	if err != nil {
		return nil, err
	}
	if err := reg.ensureRegistrySchema(); err != nil {
		reg.Close()
		return nil, err
	}
	return &Repository{layout: layout, registry: reg, projects: map[string]*handle{}}, nil
}

func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.projects {
		h.Close()
	}
	return r.registry.Close()
}

// projectHandle returns the (lazily opened, cached) per-project database
// handle, ensuring the type-specific schema for t exists.
func (r *Repository) projectHandle(name string, t config.ProjectType) (*handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.projects[name]; ok {
		return h, nil
	}
	if err := os.MkdirAll(r.layout.ProjectRoot(name), 0o750); err != nil {
		return nil, errors.NewPermissionError(
			"Cannot create project directory",
			"Permission denied creating project directory for "+name,
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}
	h, err := openHandle(r.layout.ProjectDatabasePath(name))
	if err != nil {
		return nil, err
	}
	switch t {
	case config.TypeStorage:
		err = h.ensureTypeSchema(storageProjectSchema)
	case config.TypeData:
		err = h.ensureTypeSchema(dataProjectSchema)
	}
	if err != nil {
		h.Close()
		return nil, err
	}
	r.projects[name] = h
	return h, nil
}

func (r *Repository) closeProjectHandle(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.projects[name]; ok {
		h.Close()
		delete(r.projects, name)
	}
}

// SaveProject inserts or replaces a project's registry row and rewrites
// the project_settings mirror, in one transaction.
func (r *Repository) SaveProject(p *Project) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return errors.NewInternalError("Cannot encode project settings", "JSON marshaling failed", "This is a bug", err)
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return errors.NewInternalError("Cannot encode project metadata", "JSON marshaling failed", "This is a bug", err)
	}

	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	tx, err := r.registry.db.Begin()
	if err != nil {
		return errors.NewDatabaseError("Cannot save project", "Failed to begin transaction", "Check database file permissions", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.Exec(`
		INSERT INTO projects (id, name, type, status, settings, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type=excluded.type, status=excluded.status, settings=excluded.settings,
			metadata=excluded.metadata, updated_at=excluded.updated_at`,
		p.ID.String(), p.Name, string(p.Type), string(p.Status),
		string(settings), string(metadata),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339)); err != nil {
		return errors.NewDatabaseError("Cannot save project", "Failed to write project row", "Check database file permissions", err)
	}

	if _, err := tx.Exec(`DELETE FROM project_settings WHERE project_id = ?`, p.ID.String()); err != nil {
		return errors.NewDatabaseError("Cannot save project", "Failed to clear settings mirror", "Check database file permissions", err)
	}
	for key, value := range p.Settings {
		encoded, err := json.Marshal(value)
		if err != nil {
			return errors.NewInternalError("Cannot encode project settings", "JSON marshaling failed for key "+key, "This is a bug", err)
		}
		if _, err := tx.Exec(`INSERT INTO project_settings (project_id, key, value) VALUES (?, ?, ?)`,
			p.ID.String(), key, string(encoded)); err != nil {
			return errors.NewDatabaseError("Cannot save project", "Failed to write settings mirror", "Check database file permissions", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("Cannot save project", "Failed to commit transaction", "Check database file permissions", err)
	}
	return nil
}

// ProjectSettingKeys reads the settings mirror for a project, a cheap
// introspection path that avoids decoding the full settings blob.
func (r *Repository) ProjectSettingKeys(projectID string) (map[string]string, error) {
	r.registry.mu.RLock()
	defer r.registry.mu.RUnlock()
	rows, err := r.registry.db.Query(`SELECT key, value FROM project_settings WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, errors.NewDatabaseError("Cannot read project settings", "Query failed", "This is a bug", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.NewDatabaseError("Cannot read project settings", "Failed to decode settings row", "This is a bug", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var (
		id, typ, status, settings, metadata, createdAt, updatedAt string
		name                                                      string
	)
	if err := row.Scan(&id, &name, &typ, &status, &settings, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p := &Project{
		Name:   name,
		Type:   config.ProjectType(typ),
		Status: Status(status),
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject returns a project by name, or a not-found error.
func (r *Repository) GetProject(name string) (*Project, error) {
	r.registry.mu.RLock()
	row := r.registry.db.QueryRow(`
		SELECT id, name, type, status, settings, metadata, created_at, updated_at
		FROM projects WHERE name = ?`, name)
	p, err := scanProject(row)
	r.registry.mu.RUnlock()
	if err == sql.ErrNoRows {
		return nil, errNotFound("Project", name)
	}
	if err != nil {
		return nil, errors.NewDatabaseError("Cannot read project", "Failed to decode project row", "This is a bug", err)
	}
	return p, nil
}

// ListProjects returns projects ordered by updated_at desc, optionally
// filtered by status and/or type, and capped at limit (0 = unlimited).
func (r *Repository) ListProjects(status Status, projectType config.ProjectType, limit int) ([]*Project, error) {
	query := `SELECT id, name, type, status, settings, metadata, created_at, updated_at FROM projects WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	if projectType != "" {
		query += ` AND type = ?`
		args = append(args, string(projectType))
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	r.registry.mu.RLock()
	rows, err := r.registry.db.Query(query, args...)
	if err != nil {
		r.registry.mu.RUnlock()
		return nil, errors.NewDatabaseError("Cannot list projects", "Query failed", "This is a bug", err)
	}
	defer r.registry.mu.RUnlock()
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("Cannot read project", "Failed to decode project row", "This is a bug", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project's registry row (cascading its upload
// operations), closes and removes its per-project database file, and
// removes the project's on-disk root. Callers needing a backup must take
// one before calling this (see Manager.Remove).
func (r *Repository) DeleteProject(name string) error {
	r.closeProjectHandle(name)

	r.registry.mu.Lock()
	res, err := r.registry.db.Exec(`DELETE FROM projects WHERE name = ?`, name)
	r.registry.mu.Unlock()
	if err != nil {
		return errors.NewDatabaseError("Cannot delete project", "Failed to remove project row", "Check database file permissions", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound("Project", name)
	}

	if err := os.RemoveAll(r.layout.ProjectRoot(name)); err != nil {
		return errors.NewPermissionError(
			"Cannot remove project directory",
			"Permission denied removing directory for "+name,
			"Check directory permissions and remove it manually if needed",
			err,
		)
	}
	return nil
}

// UpdateProjectStatus bumps a project's status and updated_at.
func (r *Repository) UpdateProjectStatus(name string, status Status) error {
	r.registry.mu.Lock()
	res, err := r.registry.db.Exec(`UPDATE projects SET status = ?, updated_at = ? WHERE name = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), name)
	r.registry.mu.Unlock()
	if err != nil {
		return errors.NewDatabaseError("Cannot update project status", "Failed to write status", "Check database file permissions", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound("Project", name)
	}
	return nil
}
