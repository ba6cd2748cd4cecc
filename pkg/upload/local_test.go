// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectPaths(t *testing.T, a Adapter, src *Source) []string {
	t.Helper()
	paths, errs := a.List(context.Background(), src)
	var out []string
	for p := range paths {
		out = append(out, p)
	}
	require.NoError(t, <-errs)
	return out
}

func TestLocalAdapter_Validate_MissingPath(t *testing.T) {
	a := newLocalAdapter()
	res, err := a.Validate(context.Background(), &Source{Type: SourceLocal, Location: "/does/not/exist"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Errors)
}

func TestLocalAdapter_List_RespectsExcludePatternsAndRecursion(t *testing.T) {
	root := writeSourceTree(t, map[string]string{
		"a.txt":          "aaa",
		"b.log":          "bbb",
		"nested/c.txt":   "ccc",
		"nested/d.log":   "ddd",
	})
	a := newLocalAdapter()

	flat := collectPaths(t, a, &Source{Type: SourceLocal, Location: root, ExcludePatterns: []string{"*.log"}})
	require.Len(t, flat, 1)
	assert.Equal(t, filepath.Join(root, "a.txt"), flat[0])

	deep := collectPaths(t, a, &Source{Type: SourceLocal, Location: root, Recursive: true, ExcludePatterns: []string{"*.log"}})
	assert.Len(t, deep, 2)
}

func TestLocalAdapter_Fetch_StreamsWithMonotonicProgress(t *testing.T) {
	content := make([]byte, 3*copyChunkSize/2) // forces more than one chunk
	for i := range content {
		content[i] = byte(i % 251)
	}
	src := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(src, content, 0o600))
	dest := filepath.Join(t.TempDir(), "out.bin")

	a := newLocalAdapter()
	var calls []int64
	err := a.Fetch(context.Background(), &Source{Type: SourceLocal}, src, dest, func(done, total int64) {
		calls = append(calls, done)
		assert.Equal(t, int64(len(content)), total)
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NotEmpty(t, calls)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i], calls[i-1])
	}
	assert.Equal(t, int64(len(content)), calls[len(calls)-1])
}

func TestLocalAdapter_Resume_AppendsFromOffset(t *testing.T) {
	content := []byte("0123456789")
	src := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(src, content, 0o600))

	dest := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(dest, content[:4], 0o600))

	a := newLocalAdapter()
	require.NoError(t, a.Resume(context.Background(), &Source{Type: SourceLocal}, src, dest, 4, nil))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLocalAdapter_Stat_ReportsSize(t *testing.T) {
	root := writeSourceTree(t, map[string]string{"a.txt": "hello"})
	a := newLocalAdapter()
	stat, err := a.Stat(context.Background(), &Source{Type: SourceLocal}, filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", stat.Filename)
	assert.Equal(t, int64(5), stat.Size)
	assert.False(t, stat.IsDir)
}
