// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/behemotion/docbro/internal/errors"
)

// StatResult is the metadata an adapter reports for one remote path.
type StatResult struct {
	Filename    string
	Size        int64
	MimeType    string
	IsDir       bool
	ModifiedAt  *time.Time
}

// ProgressFunc reports bytes transferred so far; total is 0 when unknown.
type ProgressFunc func(done, total int64)

// ValidationResult reports whether a source is usable before any transfer
// is attempted.
type ValidationResult struct {
	OK       bool
	Errors   []string
	Warnings []string
}

// Adapter is the common contract every upload source scheme implements.
type Adapter interface {
	Validate(ctx context.Context, source *Source) (ValidationResult, error)
	List(ctx context.Context, source *Source) (<-chan string, <-chan error)
	Stat(ctx context.Context, source *Source, path string) (StatResult, error)
	Fetch(ctx context.Context, source *Source, remotePath, localPath string, progress ProgressFunc) error
	Resume(ctx context.Context, source *Source, remotePath, localPath string, offset int64, progress ProgressFunc) error
	Close() error
}

const defaultConnectTimeout = 30 * time.Second

// Registry dispatches to the adapter for a SourceType. The set of adapters
// is fixed when NewRegistry builds the map; For looks the type up in it.
type Registry struct {
	adapters map[SourceType]Adapter
}

// NewRegistry constructs every built-in adapter.
func NewRegistry() *Registry {
	return &Registry{adapters: map[SourceType]Adapter{
		SourceLocal: newLocalAdapter(),
		SourceFTP:   newFTPAdapter(),
		SourceSFTP:  newSFTPAdapter(),
		SourceSMB:   newSMBAdapter(),
		SourceHTTP:  newHTTPAdapter(),
		SourceHTTPS: newHTTPAdapter(),
	}}
}

// For returns the adapter for t, or an error if no adapter is registered.
func (r *Registry) For(t SourceType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, errors.NewInputError(
			"Unsupported source type",
			fmt.Sprintf("no adapter registered for source type %q", t),
			"Use one of local, ftp, sftp, smb, http, https",
		)
	}
	return a, nil
}

// CloseAll releases every adapter's pooled connections.
func (r *Registry) CloseAll() {
	for _, a := range r.adapters {
		a.Close()
	}
}

// matchesExcludePattern applies a shell glob to a path's base name;
// exclude patterns match against base names, not full paths.
func matchesExcludePattern(baseName string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, baseName); ok {
			return true
		}
	}
	return false
}
