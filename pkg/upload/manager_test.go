// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/behemotion/docbro/pkg/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	manager  *Manager
	projects *project.Manager
	layout   project.Layout
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	layout := project.Layout{DataDir: t.TempDir()}
	repo, err := project.NewRepository(layout)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	factory, err := project.NewHandlerFactory(repo, layout)
	require.NoError(t, err)

	resolver, err := config.NewResolver(t.TempDir())
	require.NoError(t, err)

	projects := project.NewManager(repo, factory, layout, resolver)
	manager := NewManager(NewRegistry(), projects, repo, layout, factory, nil)

	return &testHarness{manager: manager, projects: projects, layout: layout}
}

func waitForTerminal(t *testing.T, op *Operation) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		switch op.Status() {
		case StatusComplete, StatusFailed, StatusCancelled, StatusRejected:
			return op.Status()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("operation did not reach a terminal state in time")
	return ""
}

func writeSourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	}
	return root
}

func TestManager_Start_RejectsCrawlingProject(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.projects.Create(context.Background(), "site", config.TypeCrawling, nil, false)
	require.NoError(t, err)

	src := &Source{Type: SourceLocal, Location: writeSourceTree(t, map[string]string{"a.html": "hi"})}
	op, err := h.manager.Start(context.Background(), "site", src, ConflictRename, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support uploads")
	require.NotNil(t, op)
	assert.Equal(t, StatusRejected, op.Status())

	// No temp files may remain behind a rejected operation.
	tempDir := h.layout.ProjectTempDir("site")
	entries, _ := os.ReadDir(tempDir)
	assert.Empty(t, entries)
}

func TestManager_Start_LocalUploadToStorage_StoresFile(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(10 * 1024 * 1024), "concurrent_uploads": 2,
	}, false)
	require.NoError(t, err)

	root := writeSourceTree(t, map[string]string{"report.txt": "hello world"})
	src := &Source{Type: SourceLocal, Location: root, Recursive: true}

	op, err := h.manager.Start(context.Background(), "docs", src, ConflictRename, false)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, waitForTerminal(t, op))

	repo, err := project.NewRepository(h.layout)
	require.NoError(t, err)
	defer repo.Close()
	stored, err := repo.GetStorageFileByFilename("docs", "report.txt")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(11), stored.FileSize)
}

func TestManager_Start_SizeLimitExceededMarksFileFailed(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(4),
	}, false)
	require.NoError(t, err)

	root := writeSourceTree(t, map[string]string{"big.txt": "this is larger than four bytes"})
	src := &Source{Type: SourceLocal, Location: root}

	op, err := h.manager.Start(context.Background(), "docs", src, ConflictRename, false)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, waitForTerminal(t, op))

	op.mu.Lock()
	failed := op.filesFailed
	op.mu.Unlock()
	assert.Equal(t, 1, failed)
}

func TestManager_Start_ConflictRenameAvoidsOverwrite(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(10 * 1024 * 1024),
	}, false)
	require.NoError(t, err)

	first := writeSourceTree(t, map[string]string{"doc.txt": "version one"})
	op1, err := h.manager.Start(context.Background(), "docs", &Source{Type: SourceLocal, Location: first}, ConflictRename, false)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, waitForTerminal(t, op1))

	second := writeSourceTree(t, map[string]string{"doc.txt": "version two"})
	op2, err := h.manager.Start(context.Background(), "docs", &Source{Type: SourceLocal, Location: second}, ConflictRename, false)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, waitForTerminal(t, op2))

	repo, err := project.NewRepository(h.layout)
	require.NoError(t, err)
	defer repo.Close()

	original, err := repo.GetStorageFileByFilename("docs", "doc.txt")
	require.NoError(t, err)
	require.NotNil(t, original)

	renamed, err := repo.GetStorageFileByFilename("docs", "doc_1.txt")
	require.NoError(t, err)
	require.NotNil(t, renamed)
}

func TestManager_Start_DryRunCountsFilesWithoutStoring(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(10 * 1024 * 1024),
	}, false)
	require.NoError(t, err)

	root := writeSourceTree(t, map[string]string{"a.txt": "hello", "b.txt": "world"})
	op, err := h.manager.Start(context.Background(), "docs", &Source{Type: SourceLocal, Location: root}, ConflictRename, true)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, waitForTerminal(t, op))

	snap := op.Snapshot()
	assert.Equal(t, 2, snap.FilesTotal)
	assert.Equal(t, 2, snap.FilesProcessed)
	assert.Equal(t, 2, snap.FilesSucceeded)
	assert.Equal(t, 0, snap.FilesFailed)

	repo, err := project.NewRepository(h.layout)
	require.NoError(t, err)
	defer repo.Close()
	stored, err := repo.GetStorageFileByFilename("docs", "a.txt")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestManager_Start_DryRunStillEnforcesSizeLimit(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(4),
	}, false)
	require.NoError(t, err)

	root := writeSourceTree(t, map[string]string{
		"small.txt": "hi",
		"big.txt":   "this is larger than four bytes",
	})
	op, err := h.manager.Start(context.Background(), "docs", &Source{Type: SourceLocal, Location: root}, ConflictRename, true)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, waitForTerminal(t, op))

	snap := op.Snapshot()
	assert.Equal(t, 2, snap.FilesProcessed)
	assert.Equal(t, 1, snap.FilesSucceeded)
	assert.Equal(t, 1, snap.FilesFailed)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "SIZE_LIMIT_EXCEEDED")
}

func TestManager_Cancel_RejectsWhenNotCancellable(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(10 * 1024 * 1024),
	}, false)
	require.NoError(t, err)

	root := writeSourceTree(t, map[string]string{"a.txt": "hello"})
	op, err := h.manager.Start(context.Background(), "docs", &Source{Type: SourceLocal, Location: root}, ConflictRename, false)
	require.NoError(t, err)
	waitForTerminal(t, op)

	assert.False(t, op.Cancel())
}
