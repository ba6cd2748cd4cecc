// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_ProjectScoped(t *testing.T) {
	t.Setenv("DOCBRO_PROJECT_MY_DOCS_CHUNK_SIZE", "750")
	t.Setenv("DOCBRO_PROJECT_OTHER_CHUNK_SIZE", "100")

	out, warnings := envOverrides(TypeData, "my-docs")

	assert.Empty(t, warnings)
	assert.Equal(t, 750, out["chunk_size"])
	_, leaked := out["other"]
	assert.False(t, leaked)
}

func TestEnvOverrides_TypeDefaultScoped(t *testing.T) {
	t.Setenv("DOCBRO_DEFAULT_CRAWLING_RATE_LIMIT", "4.5")

	out, _ := envOverrides(TypeCrawling, "anything")
	assert.Equal(t, 4.5, out["rate_limit"])
}

func TestEnvOverrides_DeprecatedNameWarnsAndResolves(t *testing.T) {
	t.Setenv("DOCBRO_CRAWL_RATE_LIMIT", "1.0")

	out, warnings := envOverrides(TypeCrawling, "anything")
	assert.Equal(t, 1.0, out["rate_limit"])
	assert.Len(t, warnings, 1)
}

func TestParseEnvValue_TypesValues(t *testing.T) {
	assert.Equal(t, true, parseEnvValue("yes"))
	assert.Equal(t, false, parseEnvValue("off"))
	assert.Equal(t, 42, parseEnvValue("42"))
	assert.Equal(t, 1.5, parseEnvValue("1.5"))
	assert.Equal(t, []string{"a", "b"}, parseEnvValue("a,b"))
	assert.Equal(t, "plain", parseEnvValue("plain"))
}

func TestNormalizeEnvName_ReplacesNonAlnum(t *testing.T) {
	assert.Equal(t, "MY_DOCS", normalizeEnvName("my-docs"))
}
