// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(t.TempDir())
	require.NoError(t, err)
	return r
}

func TestNewResolver_SeedsTypeDefaults(t *testing.T) {
	r := newTestResolver(t)
	global, err := r.GetGlobal(TypeData)
	require.NoError(t, err)
	assert.Equal(t, 500, global["chunk_size"])
}

func TestResolver_GetProject_UnsetProjectFallsBackToGlobal(t *testing.T) {
	r := newTestResolver(t)
	summary, err := r.GetProject(TypeCrawling, "docs-site")
	require.NoError(t, err)

	assert.True(t, summary.Validation.Valid)
	assert.Equal(t, 3, summary.Effective["crawl_depth"])
	assert.Equal(t, SourceTypeDefault, summary.SettingSources["crawl_depth"])
}

func TestResolver_UpdateProject_PersistsOverride(t *testing.T) {
	r := newTestResolver(t)

	summary, err := r.UpdateProject(TypeCrawling, "docs-site", map[string]any{"crawl_depth": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Effective["crawl_depth"])
	assert.Equal(t, SourceProject, summary.SettingSources["crawl_depth"])

	reloaded, err := r.GetProject(TypeCrawling, "docs-site")
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Effective["crawl_depth"])
}

func TestResolver_UpdateProject_NilValueRemovesOverride(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.UpdateProject(TypeCrawling, "docs-site", map[string]any{"crawl_depth": 7})
	require.NoError(t, err)

	summary, err := r.UpdateProject(TypeCrawling, "docs-site", map[string]any{"crawl_depth": nil})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Effective["crawl_depth"])
	assert.Equal(t, SourceTypeDefault, summary.SettingSources["crawl_depth"])
}

func TestResolver_UpdateProject_InvalidMergeLeavesStateUnchanged(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.UpdateProject(TypeData, "kb", map[string]any{"chunk_size": 300})
	require.NoError(t, err)

	// chunk_overlap must stay below chunk_size; the merge is invalid and
	// nothing may be written.
	_, err = r.UpdateProject(TypeData, "kb", map[string]any{"chunk_overlap": 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid settings")

	summary, err := r.GetProject(TypeData, "kb")
	require.NoError(t, err)
	assert.True(t, summary.Validation.Valid)
	assert.Equal(t, 300, summary.Effective["chunk_size"])
	assert.Equal(t, 50, summary.Effective["chunk_overlap"])
	assert.Equal(t, SourceTypeDefault, summary.SettingSources["chunk_overlap"])
}

func TestResolver_Import_InvalidReplacementLeavesStateUnchanged(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.UpdateProject(TypeData, "kb", map[string]any{"chunk_size": 300})
	require.NoError(t, err)

	_, err = r.Import(TypeData, "kb", `chunk_overlap: 900`, "yaml", false)
	require.Error(t, err)

	summary, err := r.GetProject(TypeData, "kb")
	require.NoError(t, err)
	assert.Equal(t, 300, summary.Effective["chunk_size"])
	assert.Equal(t, 50, summary.Effective["chunk_overlap"])
}

func TestResolver_ResetProject_DiscardsOverrides(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.UpdateProject(TypeData, "kb", map[string]any{"chunk_size": 999})
	require.NoError(t, err)

	summary, err := r.ResetProject(TypeData, "kb")
	require.NoError(t, err)
	assert.Equal(t, 500, summary.Effective["chunk_size"])
}

func TestResolver_EnvironmentOverridesWinOverProject(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.UpdateProject(TypeData, "kb", map[string]any{"chunk_size": 600})
	require.NoError(t, err)

	t.Setenv("DOCBRO_PROJECT_KB_CHUNK_SIZE", "900")

	summary, err := r.GetProject(TypeData, "kb")
	require.NoError(t, err)
	assert.Equal(t, 900, summary.Effective["chunk_size"])
	assert.Equal(t, SourceEnvironment, summary.SettingSources["chunk_size"])
}

func TestResolver_ExportImport_RoundTripsYAML(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.UpdateProject(TypeStorage, "archive", map[string]any{"auto_tagging": false})
	require.NoError(t, err)

	exported, err := r.Export(TypeStorage, "archive", "yaml")
	require.NoError(t, err)

	_, err = r.ResetProject(TypeStorage, "archive")
	require.NoError(t, err)

	summary, err := r.Import(TypeStorage, "archive", string(exported), "yaml", false)
	require.NoError(t, err)
	assert.Equal(t, false, summary.Effective["auto_tagging"])
}

func TestResolver_Import_MergeTrueKeepsUnmentionedOverrides(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.UpdateProject(TypeStorage, "archive", map[string]any{"auto_tagging": false})
	require.NoError(t, err)

	summary, err := r.Import(TypeStorage, "archive", `storage_encryption: true`, "yaml", true)
	require.NoError(t, err)
	assert.Equal(t, false, summary.Effective["auto_tagging"])
	assert.Equal(t, true, summary.Effective["storage_encryption"])
}

func TestResolver_Export_UnsupportedFormatErrors(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.Export(TypeStorage, "archive", "xml")
	assert.Error(t, err)
}
