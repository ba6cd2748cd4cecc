// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_CrawlingRequiresDepthAndRate(t *testing.T) {
	result := validate(TypeCrawling, map[string]any{"allowed_formats": []string{"html"}})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "crawl_depth is required for crawling projects")
	assert.Contains(t, result.Errors, "rate_limit is required for crawling projects")
}

func TestValidate_CrawlingWarnsWithoutHTML(t *testing.T) {
	result := validate(TypeCrawling, map[string]any{
		"crawl_depth":     3,
		"rate_limit":      2.0,
		"allowed_formats": []string{"pdf"},
	})
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}

func TestValidate_DataChunkOverlapMustBeSmaller(t *testing.T) {
	result := validate(TypeData, map[string]any{
		"chunk_size":      100,
		"chunk_overlap":   100,
		"embedding_model": "nomic-embed-text",
		"allowed_formats": []string{"txt"},
	})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "chunk_overlap must be smaller than chunk_size")
}

func TestValidate_StorageRequiresFormats(t *testing.T) {
	result := validate(TypeStorage, map[string]any{"allowed_formats": []string{}})
	assert.False(t, result.Valid)
}

func TestValidate_CrossTypeKeyWarns(t *testing.T) {
	result := validate(TypeStorage, map[string]any{
		"allowed_formats": []string{"*"},
		"crawl_depth":     3,
	})
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}

func TestValidate_MaxFileSizeBelowFloorWarns(t *testing.T) {
	result := validate(TypeStorage, map[string]any{
		"allowed_formats": []string{"*"},
		"max_file_size":   int64(1024),
	})
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}
