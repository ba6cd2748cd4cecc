// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/behemotion/docbro/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataHandler_ProcessDocument_ChunksWithOverlap(t *testing.T) {
	m, _ := newTestManager(t)

	p, err := m.Create(context.Background(), "kb", config.TypeData, map[string]any{
		"chunk_size": 100, "chunk_overlap": 20, "embedding_model": "m",
		"allowed_formats": []any{"md"},
	}, false)
	require.NoError(t, err)

	content := strings.Repeat("a", 250)
	src := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(src, []byte(content), 0o600))

	handler, err := m.factory.For(config.TypeData)
	require.NoError(t, err)
	dh := handler.(*dataHandler)
	require.NoError(t, dh.Initialize(context.Background(), p))

	doc, err := dh.ProcessDocument(context.Background(), p, src)
	require.NoError(t, err)

	assert.True(t, doc.ProcessingSuccess)
	assert.Greater(t, *doc.QualityScore, 0.0)
	assert.GreaterOrEqual(t, doc.ChunkCount, 2)

	var coveredEnd int
	for i, c := range doc.Chunks {
		if i == 0 {
			assert.Equal(t, 0, c.StartChar)
		}
		coveredEnd = c.StartChar + len(c.Content)
	}
	assert.Equal(t, len(content), coveredEnd)
}

func TestChunkText_LastChunkReachesEnd(t *testing.T) {
	chunks := chunkText(strings.Repeat("x", 250), 100, 20)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.Equal(t, 250, last.start+len(last.text))
}

func TestQualityScore_PenalizesShortContentAndErrors(t *testing.T) {
	assert.Less(t, qualityScore(50, 0, 3), qualityScore(1000, 0, 10))
	assert.Less(t, qualityScore(1000, 2, 10), qualityScore(1000, 0, 10))
}

func TestExtractText_StripsHTMLTags(t *testing.T) {
	text, errs := extractText("page.html", []byte("<p>Hello <b>world</b></p>"))
	assert.Empty(t, errs)
	assert.Equal(t, "Hello world", text)
}
