// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config resolves a project's effective configuration by merging
// type defaults, global defaults, project overrides, and environment
// overrides, in that order of precedence, with per-key provenance
// tracking.
package config

// ProjectType is the closed sum of project kinds docbro understands.
type ProjectType string

const (
	TypeCrawling ProjectType = "crawling"
	TypeData     ProjectType = "data"
	TypeStorage  ProjectType = "storage"
)

func (t ProjectType) Valid() bool {
	switch t {
	case TypeCrawling, TypeData, TypeStorage:
		return true
	}
	return false
}

// VectorStoreType enumerates supported data-project vector backends.
type VectorStoreType string

const (
	VectorStoreSQLiteVec VectorStoreType = "sqlite_vec"
	VectorStoreQdrant    VectorStoreType = "qdrant"
)

// Source identifies which configuration layer a resolved value came from.
type Source string

const (
	SourceTypeDefault Source = "type_default"
	SourceGlobal      Source = "global"
	SourceProject     Source = "project"
	SourceEnvironment Source = "environment"
)

// ProjectConfig is the typed settings surface: optional pointers for
// every known key, plus Extra for unknown or
// cross-type ("incompatible") keys that must still round-trip.
type ProjectConfig struct {
	// Base (all types)
	MaxFileSize     *int64   `yaml:"max_file_size,omitempty" json:"max_file_size,omitempty"`
	AllowedFormats  []string `yaml:"allowed_formats,omitempty" json:"allowed_formats,omitempty"`

	// Crawling-only
	CrawlDepth       *int     `yaml:"crawl_depth,omitempty" json:"crawl_depth,omitempty"`
	RateLimit        *float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	UserAgent        *string  `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	FollowRedirects  *bool    `yaml:"follow_redirects,omitempty" json:"follow_redirects,omitempty"`
	RespectRobotsTxt *bool    `yaml:"respect_robots_txt,omitempty" json:"respect_robots_txt,omitempty"`

	// Data-only
	ChunkSize       *int     `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
	ChunkOverlap    *int     `yaml:"chunk_overlap,omitempty" json:"chunk_overlap,omitempty"`
	EmbeddingModel  *string  `yaml:"embedding_model,omitempty" json:"embedding_model,omitempty"`
	VectorStoreType *string  `yaml:"vector_store_type,omitempty" json:"vector_store_type,omitempty"`

	// Storage-only
	EnableCompression *bool `yaml:"enable_compression,omitempty" json:"enable_compression,omitempty"`
	AutoTagging       *bool `yaml:"auto_tagging,omitempty" json:"auto_tagging,omitempty"`
	FullTextIndexing  *bool `yaml:"full_text_indexing,omitempty" json:"full_text_indexing,omitempty"`
	StorageEncryption *bool `yaml:"storage_encryption,omitempty" json:"storage_encryption,omitempty"`

	// Shared optional
	ConcurrentUploads *int `yaml:"concurrent_uploads,omitempty" json:"concurrent_uploads,omitempty"`
	RetryAttempts     *int `yaml:"retry_attempts,omitempty" json:"retry_attempts,omitempty"`
	TimeoutSeconds    *int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`

	// Extra carries keys this config layer set that don't map to a known
	// field (forward-compat keys, or keys belonging to another project
	// type). They participate in round-trip but never in validation.
	Extra map[string]any `yaml:"-" json:"-"`
}

// ValidationResult is returned by validate and by the resolver's public
// operations; Errors make the resolved configuration unusable, Warnings do
// not (e.g. an incompatible cross-type key, or max_file_size below the
// recommended floor).
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(msg string)   { r.Errors = append(r.Errors, msg); r.Valid = false }
func (r *ValidationResult) addWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

// Summary is the result of Resolver.Summary: the effective merged map and,
// for every key that was set anywhere, which layer won.
type Summary struct {
	Effective      map[string]any
	SettingSources map[string]Source
	Validation     ValidationResult
}
