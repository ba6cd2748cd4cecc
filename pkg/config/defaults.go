// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

// typeDefaults returns the built-in defaults for a project type, the
// first (lowest-precedence) merge layer: a pure function returning a
// fresh map, safe for the caller to mutate.
func typeDefaults(t ProjectType) map[string]any {
	base := map[string]any{
		"max_file_size":      int64(10 * 1024 * 1024), // 10 MiB
		"allowed_formats":    []string{"*"},
		"concurrent_uploads": 3,
		"retry_attempts":     3,
		"timeout_seconds":    300,
	}

	switch t {
	case TypeCrawling:
		base["crawl_depth"] = 3
		base["rate_limit"] = 2.0
		base["user_agent"] = "docbro-crawler/1.0"
		base["follow_redirects"] = true
		base["respect_robots_txt"] = true
		base["allowed_formats"] = []string{"html", "htm"}
	case TypeData:
		base["chunk_size"] = 500
		base["chunk_overlap"] = 50
		base["embedding_model"] = "nomic-embed-text"
		base["vector_store_type"] = string(VectorStoreSQLiteVec)
		base["allowed_formats"] = []string{"txt", "md", "html", "json", "pdf"}
	case TypeStorage:
		base["enable_compression"] = false
		base["auto_tagging"] = true
		base["full_text_indexing"] = true
		base["storage_encryption"] = false
		base["allowed_formats"] = []string{"*"}
	}
	return base
}

// DefaultSettings returns the built-in defaults for t, for callers outside
// the package (project type handlers) that need a starting settings map
// without going through the full resolver.
func DefaultSettings(t ProjectType) map[string]any {
	return typeDefaults(t)
}

// Validate exposes the package's per-type validation rules to callers that
// already hold an effective settings map (project type handlers validating
// a settings update before asking the resolver to persist it).
func Validate(t ProjectType, settings map[string]any) ValidationResult {
	return validate(t, settings)
}

// GlobalDefaultsSeed returns the documented seed values written to
// <config>/settings.yaml on first use.
func GlobalDefaultsSeed() map[ProjectType]map[string]any {
	return map[ProjectType]map[string]any{
		TypeCrawling: typeDefaults(TypeCrawling),
		TypeData:     typeDefaults(TypeData),
		TypeStorage:  typeDefaults(TypeStorage),
	}
}

// typeSurfaceKeys lists the settings keys that belong exclusively to a
// given project type, used to flag cross-type "incompatible" keys.
func typeSurfaceKeys(t ProjectType) map[string]bool {
	var keys []string
	switch t {
	case TypeCrawling:
		keys = []string{"crawl_depth", "rate_limit", "user_agent", "follow_redirects", "respect_robots_txt"}
	case TypeData:
		keys = []string{"chunk_size", "chunk_overlap", "embedding_model", "vector_store_type"}
	case TypeStorage:
		keys = []string{"enable_compression", "auto_tagging", "full_text_indexing", "storage_encryption"}
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

// allTypeSurfaceKeys is the union of every type's exclusive keys, used to
// detect when a key belongs to a *different* type than the one being
// validated (as opposed to being an unrecognized forward-compat key).
func allTypeSurfaceKeys() map[string]ProjectType {
	out := map[string]ProjectType{}
	for _, t := range []ProjectType{TypeCrawling, TypeData, TypeStorage} {
		for k := range typeSurfaceKeys(t) {
			out[k] = t
		}
	}
	return out
}
