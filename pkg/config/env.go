// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"strconv"
	"strings"
)

// envPrefix is the variable prefix recognized by envOverrides. The scan
// covers every matching variable rather than a fixed list of names.
const envPrefix = "DOCBRO_"

// deprecatedEnvNames maps a retired variable name to its replacement, so a
// stale deployment config still resolves (with a warning) instead of being
// silently ignored.
var deprecatedEnvNames = map[string]string{
	"DOCBRO_CRAWL_RATE_LIMIT": "DOCBRO_DEFAULT_CRAWLING_RATE_LIMIT",
}

// envOverrides scans the process environment for docbro override variables
// addressed either at a specific project (DOCBRO_PROJECT_<NAME>_<KEY>) or at
// a type's defaults (DOCBRO_DEFAULT_<TYPE>_<KEY>).
// Only variables matching name (case-insensitively, with '-' normalized to
// '_') or addressed at t's defaults are returned; everything else is for a
// different project/type and ignored here.
func envOverrides(t ProjectType, name string) (map[string]any, []string) {
	out := map[string]any{}
	var warnings []string

	projectMarker := "DOCBRO_PROJECT_" + normalizeEnvName(name) + "_"
	defaultMarker := "DOCBRO_DEFAULT_" + strings.ToUpper(string(t)) + "_"

	for _, kv := range os.Environ() {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		envName, raw := kv[:eq], kv[eq+1:]
		if !strings.HasPrefix(envName, envPrefix) {
			continue
		}

		resolved := envName
		if repl, deprecated := deprecatedEnvNames[envName]; deprecated {
			warnings = append(warnings, "environment variable "+envName+" is deprecated, use "+repl+" instead")
			resolved = repl
		}

		var key string
		switch {
		case strings.HasPrefix(resolved, projectMarker):
			key = resolved[len(projectMarker):]
		case strings.HasPrefix(resolved, defaultMarker):
			key = resolved[len(defaultMarker):]
		default:
			continue
		}
		if key == "" {
			continue
		}
		out[strings.ToLower(key)] = parseEnvValue(raw)
	}
	return out, warnings
}

// normalizeEnvName upper-cases a project name and replaces any character
// that can't appear in a POSIX environment variable name with '_', so
// project names like "my-docs" address DOCBRO_PROJECT_MY_DOCS_*.
func normalizeEnvName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// parseEnvValue types a raw environment string:
// booleans via a fixed true/false vocabulary, integers, floats, comma-lists,
// falling back to the literal string.
func parseEnvValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			list = append(list, strings.TrimSpace(p))
		}
		return list
	}
	return raw
}
