// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload implements the upload source adapters and the upload
// manager: driving an end-to-end ingestion from a local, FTP, SFTP,
// SMB, or HTTP(S) source into a project.
package upload

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SourceType is the closed sum of upload source schemes.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceFTP   SourceType = "ftp"
	SourceSFTP  SourceType = "sftp"
	SourceSMB   SourceType = "smb"
	SourceHTTP  SourceType = "http"
	SourceHTTPS SourceType = "https"
)

// Credentials carries the optional authentication material an adapter may
// need.
type Credentials struct {
	Username string
	Password string
	Key      string // inline private key (SFTP) or API key/token (HTTP bearer)
	Domain   string // SMB domain
}

// Source describes where an upload operation reads from.
type Source struct {
	Type              SourceType
	Location          string
	Credentials       *Credentials
	Recursive         bool
	ExcludePatterns   []string
	FollowSymlinks    bool
	VerifySSL         bool
	OverwritePolicy   ConflictPolicy

	mu             sync.Mutex
	successCount   int
	failureCount   int
	lastAccessed   time.Time
}

// RecordSuccess and RecordFailure update the source's reliability
// accumulators.
func (s *Source) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successCount++
	s.lastAccessed = time.Now().UTC()
}

func (s *Source) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
	s.lastAccessed = time.Now().UTC()
}

// Reliability returns success/(success+failure), defaulting to 1.0 when no
// attempts have been made yet.
func (s *Source) Reliability() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.successCount + s.failureCount
	if total == 0 {
		return 1.0
	}
	return float64(s.successCount) / float64(total)
}

// ConflictPolicy controls how the manager handles a storage-project
// filename collision.
type ConflictPolicy string

const (
	ConflictAsk       ConflictPolicy = "ask"
	ConflictSkip      ConflictPolicy = "skip"
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictRename    ConflictPolicy = "rename"
	ConflictBackup    ConflictPolicy = "backup"
)

// Status is an upload operation's position in its lifecycle state machine.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusValidating Status = "validating"
	StatusRejected   Status = "rejected"
	StatusDownloading Status = "downloading"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// cancellable reports whether cancel is allowed from the given status.
func (s Status) cancellable() bool {
	switch s {
	case StatusInitiated, StatusDownloading, StatusProcessing, StatusRetrying:
		return true
	default:
		return false
	}
}

// Operation is the runtime state of one upload operation, the in-memory
// counterpart to project.UploadOperationRecord.
type Operation struct {
	ID             uuid.UUID
	ProjectName    string
	Source         *Source
	ConflictPolicy ConflictPolicy

	mu             sync.Mutex
	status         Status
	filesTotal     int
	filesProcessed int
	filesSucceeded int
	filesFailed    int
	filesSkipped   int
	bytesTotal     int64
	bytesProcessed int64
	currentFile    string
	currentStage   string
	errs           []string
	startedAt      *time.Time
	completedAt    *time.Time
	estimatedDone  *time.Time

	cancel context.CancelFunc
}

func newOperation(projectName string, source *Source, policy ConflictPolicy) *Operation {
	return &Operation{
		ID: uuid.New(), ProjectName: projectName, Source: source,
		ConflictPolicy: policy, status: StatusInitiated,
	}
}

func (op *Operation) setStatus(s Status) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.status = s
}

func (op *Operation) Status() Status {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

// Cancel flips an operation-scoped cancel flag if the current status
// permits it.
func (op *Operation) Cancel() bool {
	op.mu.Lock()
	if !op.status.cancellable() {
		op.mu.Unlock()
		return false
	}
	op.mu.Unlock()

	if op.cancel != nil {
		op.cancel()
	}
	return true
}

// Snapshot is a point-in-time, exported copy of an Operation's progress
// counters, safe to read outside the package (pkg/progress, pkg/rpc).
type Snapshot struct {
	ID             uuid.UUID
	ProjectName    string
	Status         Status
	FilesTotal     int
	FilesProcessed int
	FilesSucceeded int
	FilesFailed    int
	FilesSkipped   int
	BytesTotal     int64
	BytesProcessed int64
	CurrentFile         string
	CurrentStage        string
	Errors              []string
	StartedAt           *time.Time
	CompletedAt         *time.Time
	EstimatedCompletion *time.Time
}

// updateEstimateLocked recomputes the projected completion time from the
// observed transfer rate. Caller holds op.mu.
func (op *Operation) updateEstimateLocked() {
	if op.startedAt == nil || op.bytesTotal <= 0 || op.bytesProcessed <= 0 {
		return
	}
	elapsed := time.Since(*op.startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(op.bytesProcessed) / elapsed.Seconds()
	if rate <= 0 {
		return
	}
	remaining := op.bytesTotal - op.bytesProcessed
	if remaining < 0 {
		remaining = 0
	}
	eta := time.Now().UTC().Add(time.Duration(float64(remaining)/rate * float64(time.Second)))
	op.estimatedDone = &eta
}

func (op *Operation) Snapshot() Snapshot {
	op.mu.Lock()
	defer op.mu.Unlock()
	return Snapshot{
		ID: op.ID, ProjectName: op.ProjectName, Status: op.status,
		FilesTotal: op.filesTotal, FilesProcessed: op.filesProcessed,
		FilesSucceeded: op.filesSucceeded, FilesFailed: op.filesFailed, FilesSkipped: op.filesSkipped,
		BytesTotal: op.bytesTotal, BytesProcessed: op.bytesProcessed,
		CurrentFile: op.currentFile, CurrentStage: op.currentStage,
		Errors: append([]string(nil), op.errs...), StartedAt: op.startedAt, CompletedAt: op.completedAt,
		EstimatedCompletion: op.estimatedDone,
	}
}
