// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, Layout) {
	t.Helper()
	layout := Layout{DataDir: t.TempDir()}
	repo, err := NewRepository(layout)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	factory, err := NewHandlerFactory(repo, layout)
	require.NoError(t, err)

	resolver, err := config.NewResolver(t.TempDir())
	require.NoError(t, err)

	return NewManager(repo, factory, layout, resolver), layout
}

func TestManager_Create_PersistsRowAndDirectory(t *testing.T) {
	m, layout := newTestManager(t)

	p, err := m.Create(context.Background(), "docs", config.TypeStorage, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "docs", p.Name)

	_, err = os.Stat(layout.ProjectRoot("docs"))
	assert.NoError(t, err)

	fetched, err := m.Get("docs")
	require.NoError(t, err)
	assert.Equal(t, p.ID, fetched.ID)
}

func TestManager_Create_SeedsSettingsFromResolvedConfig(t *testing.T) {
	m, _ := newTestManager(t)
	t.Setenv("DOCBRO_PROJECT_DOCS_MAX_FILE_SIZE", "2097152")

	p, err := m.Create(context.Background(), "docs", config.TypeStorage, nil, false)
	require.NoError(t, err)

	size, ok := asInt(p.Settings["max_file_size"])
	require.True(t, ok)
	assert.Equal(t, 2*1024*1024, size)
}

func TestManager_Create_DuplicateWithoutForceFails(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Create(context.Background(), "docs", config.TypeStorage, nil, false)
	require.NoError(t, err)

	_, err = m.Create(context.Background(), "docs", config.TypeStorage, nil, false)
	assert.Error(t, err)
}

func TestManager_Create_InvalidNameRejected(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Create(context.Background(), "bad/name", config.TypeStorage, nil, false)
	assert.Error(t, err)
}

func TestManager_Remove_DeletesDirectoryAndRow(t *testing.T) {
	m, layout := newTestManager(t)

	_, err := m.Create(context.Background(), "docs", config.TypeStorage, nil, false)
	require.NoError(t, err)

	err = m.Remove(context.Background(), "docs", false, false)
	require.NoError(t, err)

	_, err = os.Stat(layout.ProjectRoot("docs"))
	assert.True(t, os.IsNotExist(err))

	_, err = m.Get("docs")
	assert.Error(t, err)
}

func TestManager_Remove_WithBackupCopiesData(t *testing.T) {
	m, layout := newTestManager(t)

	_, err := m.Create(context.Background(), "docs", config.TypeStorage, nil, false)
	require.NoError(t, err)

	marker := filepath.Join(layout.ProjectRoot("docs"), "files", "marker.txt")
	require.NoError(t, os.WriteFile(marker, []byte("hi"), 0o600))

	err = m.Remove(context.Background(), "docs", true, false)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(layout.DataDir, "backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
