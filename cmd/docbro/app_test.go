// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"testing"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	t.Setenv("DOCBRO_DATA_DIR", t.TempDir())
	t.Setenv("DOCBRO_CONFIG_DIR", t.TempDir())

	a, err := newApp()
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewApp_WiresSubsystemsAndCreatesProject(t *testing.T) {
	a := newTestApp(t)

	proj, err := a.projects.Create(context.Background(), "docs", config.TypeStorage, map[string]any{
		"allowed_formats": []any{"*"}, "max_file_size": int64(1024 * 1024),
	}, false)
	require.NoError(t, err)
	require.Equal(t, "docs", proj.Name)

	got, err := a.projects.Get("docs")
	require.NoError(t, err)
	require.Equal(t, proj.ID, got.ID)
}
