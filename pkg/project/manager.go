// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"context"
	"os"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

// Manager is the thin lifecycle coordinator: it validates, delegates to
// the repository and handler factory, and rolls back on partial failure.
// It owns no state of its own beyond its collaborators.
type Manager struct {
	repo      *Repository
	factory   *HandlerFactory
	layout    Layout
	resolver  *config.Resolver
}

func NewManager(repo *Repository, factory *HandlerFactory, layout Layout, resolver *config.Resolver) *Manager {
	return &Manager{repo: repo, factory: factory, layout: layout, resolver: resolver}
}

// Create validates the name, refuses duplicates unless force, creates the
// project directory, initializes the type handler, and persists the row.
// Any failure after directory creation triggers a best-effort rollback.
func (m *Manager) Create(ctx context.Context, name string, t config.ProjectType, settings map[string]any, force bool) (*Project, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, errors.NewInputError("Invalid project type", "Project type must be crawling, data, or storage", "Choose a valid project type")
	}

	if _, err := m.repo.GetProject(name); err == nil && !force {
		return nil, errAlreadyExists(name)
	}

	handler, err := m.factory.For(t)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		// Seed from the resolved effective configuration so global and
		// environment overrides apply to new projects, not just the
		// built-in type defaults.
		if summary, err := m.resolver.GetProject(t, name); err == nil {
			settings = summary.Effective
		} else {
			settings = handler.DefaultSettings()
		}
	}
	validation := handler.ValidateSettings(settings)
	if !validation.Valid {
		return nil, errors.NewInputError(
			"Invalid settings",
			"Settings failed validation: "+joinStrings(validation.Errors, "; "),
			"Fix the reported settings and try again",
		)
	}

	now := nowUTC()
	p := &Project{
		ID: uuid.New(), Name: name, Type: t, Status: StatusActive,
		Settings: settings, Metadata: map[string]any{}, CreatedAt: now, UpdatedAt: now,
	}

	if err := os.MkdirAll(m.layout.ProjectRoot(name), 0o750); err != nil {
		return nil, errors.NewPermissionError("Cannot create project", "Failed to create project directory", "Check directory permissions", err)
	}

	if err := handler.Initialize(ctx, p); err != nil {
		m.rollbackCreate(name)
		return nil, err
	}

	if err := m.repo.SaveProject(p); err != nil {
		m.rollbackCreate(name)
		return nil, err
	}
	return p, nil
}

func (m *Manager) rollbackCreate(name string) {
	os.RemoveAll(m.layout.ProjectRoot(name))
	m.repo.DeleteProject(name) //nolint:errcheck // best-effort rollback
}

// Get returns a project by name.
func (m *Manager) Get(name string) (*Project, error) {
	return m.repo.GetProject(name)
}

// List returns projects matching the given filters.
func (m *Manager) List(status Status, t config.ProjectType, limit int) ([]*Project, error) {
	return m.repo.ListProjects(status, t, limit)
}

// Update validates settings for the project's current type before
// persisting.
func (m *Manager) Update(p *Project) error {
	handler, err := m.factory.For(p.Type)
	if err != nil {
		return err
	}
	validation := handler.ValidateSettings(p.Settings)
	if !validation.Valid {
		return errors.NewInputError(
			"Invalid settings",
			"Settings failed validation: "+joinStrings(validation.Errors, "; "),
			"Fix the reported settings and try again",
		)
	}
	p.UpdatedAt = nowUTC()
	return m.repo.SaveProject(p)
}

// Remove optionally backs up the project, invokes handler cleanup, then
// deletes the directory and registry row. With force=true, a cleanup
// failure is treated as non-fatal.
func (m *Manager) Remove(ctx context.Context, name string, backup bool, force bool) error {
	p, err := m.repo.GetProject(name)
	if err != nil {
		return err
	}

	if backup {
		if err := m.backupProject(p); err != nil && !force {
			return err
		}
	}

	handler, err := m.factory.For(p.Type)
	if err != nil {
		return err
	}
	if err := handler.Cleanup(ctx, p, force); err != nil && !force {
		return err
	}

	return m.repo.DeleteProject(name)
}

// GetProjectStats combines filesystem sizes with handler-provided
// type-specific stats.
func (m *Manager) GetProjectStats(ctx context.Context, name string) (map[string]any, error) {
	p, err := m.repo.GetProject(name)
	if err != nil {
		return nil, err
	}
	handler, err := m.factory.For(p.Type)
	if err != nil {
		return nil, err
	}

	typeStats, err := handler.ProjectStats(ctx, p)
	if err != nil {
		return nil, err
	}

	totalBytes, fileCount := dirStats(m.layout.ProjectRoot(name))
	stats := map[string]any{
		"directory_bytes": totalBytes,
		"directory_files": fileCount,
	}
	for k, v := range typeStats {
		stats[k] = v
	}
	return stats, nil
}
