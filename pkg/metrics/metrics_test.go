// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/behemotion/docbro/pkg/project"
	"github.com/behemotion/docbro/pkg/upload"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUpload_RecordsCountersForCompletedOperation(t *testing.T) {
	layout := project.Layout{DataDir: t.TempDir()}
	repo, err := project.NewRepository(layout)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	factory, err := project.NewHandlerFactory(repo, layout)
	require.NoError(t, err)

	resolver, err := config.NewResolver(t.TempDir())
	require.NoError(t, err)

	projects := project.NewManager(repo, factory, layout, resolver)
	_, err = projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(10 * 1024 * 1024),
	}, false)
	require.NoError(t, err)

	m := NewMetrics()
	manager := upload.NewManager(upload.NewRegistry(), projects, repo, layout, factory, m.ObserveUpload())

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o600))

	op, err := manager.Start(context.Background(), "docs", &upload.Source{Type: upload.SourceLocal, Location: root}, upload.ConflictRename, false)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && op.Status() != upload.StatusComplete && op.Status() != upload.StatusFailed {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, upload.StatusComplete, op.Status())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FilesProcessed.WithLabelValues("docs", "succeeded")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveOperations))
}
