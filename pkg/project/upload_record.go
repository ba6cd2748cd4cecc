// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import "time"

// UploadOperationRecord is the persisted, repository-owned shape of an
// upload operation. pkg/upload holds the richer runtime
// type (adapter handles, cancel funcs) and maps to/from this record for
// storage; the repository never imports pkg/upload to avoid a cycle.
type UploadOperationRecord struct {
	ID             string
	ProjectID      string
	Source         map[string]any
	Status         string
	ConflictPolicy string
	FilesTotal     int
	FilesProcessed int
	FilesSucceeded int
	FilesFailed    int
	FilesSkipped   int
	BytesTotal     int64
	BytesProcessed int64
	CurrentFile    string
	CurrentStage   string
	Errors         []string
	StartedAt      *time.Time
	CompletedAt    *time.Time
}
