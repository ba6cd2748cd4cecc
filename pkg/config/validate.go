// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "fmt"

const minRecommendedMaxFileSize = 1024 * 1024 // 1 MiB

// validate applies the per-type rules to an effective,
// merged settings map. It never mutates effective.
func validate(t ProjectType, effective map[string]any) ValidationResult {
	result := ValidationResult{Valid: true}

	switch t {
	case TypeCrawling:
		validateCrawling(effective, &result)
	case TypeData:
		validateData(effective, &result)
	case TypeStorage:
		validateStorage(effective, &result)
	default:
		result.addError(fmt.Sprintf("unknown project type %q", t))
		return result
	}

	validateShared(effective, &result)
	validateCrossType(t, effective, &result)
	return result
}

func validateCrawling(m map[string]any, r *ValidationResult) {
	depth, ok := asInt(m["crawl_depth"])
	if !ok {
		r.addError("crawl_depth is required for crawling projects")
	} else if depth < 1 {
		r.addError("crawl_depth must be at least 1")
	}

	rate, ok := asFloat(m["rate_limit"])
	if !ok {
		r.addError("rate_limit is required for crawling projects")
	} else if rate <= 0 {
		r.addError("rate_limit must be positive")
	}

	if formats, ok := asStringSlice(m["allowed_formats"]); ok && !containsFold(formats, "html") && !containsFold(formats, "*") {
		r.addWarning("allowed_formats does not include \"html\"; most crawl targets are HTML pages")
	}
}

func validateData(m map[string]any, r *ValidationResult) {
	chunkSize, hasSize := asInt(m["chunk_size"])
	if !hasSize {
		r.addError("chunk_size is required for data projects")
	} else if chunkSize < 1 {
		r.addError("chunk_size must be positive")
	}

	if _, ok := m["embedding_model"].(string); !ok {
		r.addError("embedding_model is required for data projects")
	}

	if overlap, ok := asInt(m["chunk_overlap"]); ok && hasSize && overlap >= chunkSize {
		r.addError("chunk_overlap must be smaller than chunk_size")
	}

	if formats, ok := asStringSlice(m["allowed_formats"]); ok && len(formats) == 0 {
		r.addError("allowed_formats must name at least one document format for data projects")
	}

	if vs, ok := m["vector_store_type"].(string); ok {
		switch VectorStoreType(vs) {
		case VectorStoreSQLiteVec, VectorStoreQdrant:
		default:
			r.addError(fmt.Sprintf("unknown vector_store_type %q", vs))
		}
	}
}

func validateStorage(m map[string]any, r *ValidationResult) {
	if formats, ok := asStringSlice(m["allowed_formats"]); !ok || len(formats) == 0 {
		r.addError("allowed_formats must be a non-empty list for storage projects")
	}

	for _, key := range []string{"enable_compression", "auto_tagging", "full_text_indexing", "storage_encryption"} {
		if v, present := m[key]; present {
			if _, ok := v.(bool); !ok {
				r.addError(fmt.Sprintf("%s must be a boolean", key))
			}
		}
	}
}

func validateShared(m map[string]any, r *ValidationResult) {
	if size, ok := asInt64(m["max_file_size"]); ok && size < minRecommendedMaxFileSize {
		r.addWarning("max_file_size is below the recommended 1 MiB floor")
	}
	if n, ok := asInt(m["concurrent_uploads"]); ok && n < 1 {
		r.addError("concurrent_uploads must be at least 1")
	}
	if n, ok := asInt(m["retry_attempts"]); ok && n < 0 {
		r.addError("retry_attempts cannot be negative")
	}
	if n, ok := asInt(m["timeout_seconds"]); ok && n < 1 {
		r.addError("timeout_seconds must be positive")
	}
}

// validateCrossType warns when a setting key belongs to a project type
// other than t. Incompatible keys warn; they do not fail validation.
func validateCrossType(t ProjectType, m map[string]any, r *ValidationResult) {
	owners := allTypeSurfaceKeys()
	for key := range m {
		owner, known := owners[key]
		if known && owner != t {
			r.addWarning(fmt.Sprintf("%q is a %s-only setting and has no effect on %s projects", key, owner, t))
		}
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	}
	return nil, false
}

func containsFold(list []string, target string) bool {
	for _, s := range list {
		if eqFold(s, target) {
			return true
		}
	}
	return false
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
