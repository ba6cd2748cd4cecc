// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"os"
	"testing"
	"time"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*Repository, Layout) {
	t.Helper()
	layout := Layout{DataDir: t.TempDir()}
	repo, err := NewRepository(layout)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, layout
}

func testProject(name string, typ config.ProjectType, updated time.Time) *Project {
	return &Project{
		ID:        uuid.New(),
		Name:      name,
		Type:      typ,
		Status:    StatusActive,
		Settings:  map[string]any{"max_file_size": float64(1 << 20)},
		Metadata:  map[string]any{},
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func TestRepository_SaveAndGetProject_RoundTrips(t *testing.T) {
	repo, _ := newTestRepository(t)
	p := testProject("docs", config.TypeStorage, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.SaveProject(p))

	got, err := repo.GetProject("docs")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, config.TypeStorage, got.Type)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, p.Settings, got.Settings)
}

func TestRepository_GetProject_UnknownIsNotFound(t *testing.T) {
	repo, _ := newTestRepository(t)
	_, err := repo.GetProject("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRepository_ListProjects_OrdersByUpdatedAtDescAndFilters(t *testing.T) {
	repo, _ := newTestRepository(t)
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.SaveProject(testProject("oldest", config.TypeStorage, base.Add(-2*time.Hour))))
	require.NoError(t, repo.SaveProject(testProject("middle", config.TypeData, base.Add(-time.Hour))))
	require.NoError(t, repo.SaveProject(testProject("newest", config.TypeStorage, base)))

	all, err := repo.ListProjects("", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "newest", all[0].Name)
	assert.Equal(t, "middle", all[1].Name)
	assert.Equal(t, "oldest", all[2].Name)

	storage, err := repo.ListProjects("", config.TypeStorage, 0)
	require.NoError(t, err)
	require.Len(t, storage, 2)

	limited, err := repo.ListProjects("", "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "newest", limited[0].Name)
}

func TestRepository_UpdateProjectStatus_BumpsUpdatedAt(t *testing.T) {
	repo, _ := newTestRepository(t)
	p := testProject("docs", config.TypeStorage, time.Now().UTC().Add(-time.Hour).Truncate(time.Second))
	require.NoError(t, repo.SaveProject(p))

	require.NoError(t, repo.UpdateProjectStatus("docs", StatusProcessing))

	got, err := repo.GetProject("docs")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt))
}

func TestRepository_DeleteProject_CascadesUploadOperations(t *testing.T) {
	repo, layout := newTestRepository(t)
	p := testProject("docs", config.TypeStorage, time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.SaveProject(p))

	started := time.Now().UTC()
	require.NoError(t, repo.SaveUploadOperation(&UploadOperationRecord{
		ID:        uuid.NewString(),
		ProjectID: p.ID.String(),
		Source:    map[string]any{"type": "local", "location": "/tmp/src"},
		Status:    "complete",
		StartedAt: &started,
	}))

	ops, err := repo.ListUploadOperations(p.ID.String(), "")
	require.NoError(t, err)
	require.Len(t, ops, 1)

	require.NoError(t, repo.DeleteProject("docs"))

	ops, err = repo.ListUploadOperations(p.ID.String(), "")
	require.NoError(t, err)
	assert.Empty(t, ops)

	_, err = repo.GetProject("docs")
	assert.Error(t, err)
	_, err = os.Stat(layout.ProjectRoot("docs"))
	assert.True(t, os.IsNotExist(err))
}

func TestRepository_SaveProject_MaintainsSettingsMirror(t *testing.T) {
	repo, _ := newTestRepository(t)
	p := testProject("docs", config.TypeStorage, time.Now().UTC().Truncate(time.Second))
	p.Settings = map[string]any{"max_file_size": float64(1 << 20), "auto_tagging": true}
	require.NoError(t, repo.SaveProject(p))

	mirror, err := repo.ProjectSettingKeys(p.ID.String())
	require.NoError(t, err)
	assert.Len(t, mirror, 2)
	assert.Equal(t, "true", mirror["auto_tagging"])

	p.Settings = map[string]any{"auto_tagging": false}
	require.NoError(t, repo.SaveProject(p))

	mirror, err = repo.ProjectSettingKeys(p.ID.String())
	require.NoError(t, err)
	assert.Len(t, mirror, 1)
	assert.Equal(t, "false", mirror["auto_tagging"])
}

func TestRepository_DeleteProject_UnknownIsNotFound(t *testing.T) {
	repo, _ := newTestRepository(t)
	err := repo.DeleteProject("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
