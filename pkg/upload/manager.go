// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/behemotion/docbro/pkg/project"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultJanitorMaxAge = 24 * time.Hour

// EventFunc is invoked whenever an operation's progress changes, giving a
// caller (pkg/progress, the RPC layer) a transport-neutral hook without the
// manager needing to know about any particular reporting mechanism.
type EventFunc func(op *Operation)

// Chain combines several EventFuncs into one, invoking each in order. A nil
// entry is skipped, so callers can conditionally include an observer
// (metrics, progress) without branching at the call site.
func Chain(funcs ...EventFunc) EventFunc {
	return func(op *Operation) {
		for _, f := range funcs {
			if f != nil {
				f(op)
			}
		}
	}
}

// Manager orchestrates upload operations end to end: validating the
// request, enumerating the source, fetching each file with bounded
// concurrency, and dispatching it to the target project's handler. It
// mirrors the staged validate-then-run shape of project.Manager.Create.
type Manager struct {
	registry *Registry
	projects *project.Manager
	repo     *project.Repository
	layout   project.Layout
	factory  *project.HandlerFactory
	onEvent  EventFunc

	mu  sync.Mutex
	ops map[uuid.UUID]*Operation
}

func NewManager(registry *Registry, projects *project.Manager, repo *project.Repository, layout project.Layout, factory *project.HandlerFactory, onEvent EventFunc) *Manager {
	return &Manager{
		registry: registry, projects: projects, repo: repo, layout: layout,
		factory: factory, onEvent: onEvent, ops: make(map[uuid.UUID]*Operation),
	}
}

func (m *Manager) emit(op *Operation) {
	if m.onEvent != nil {
		m.onEvent(op)
	}
}

// Start runs the pre-flight checks, then processes the operation in the
// background and returns immediately with the Operation handle. Pre-flight
// failures still produce an Operation, in status rejected, so callers can
// inspect what went wrong through the same handle a running operation has.
func (m *Manager) Start(ctx context.Context, projectName string, source *Source, policy ConflictPolicy, dryRun bool) (*Operation, error) {
	p, err := m.projects.Get(projectName)
	if err != nil {
		return nil, err
	}

	if policy == "" {
		policy = ConflictRename
	}
	op := newOperation(projectName, source, policy)
	op.setStatus(StatusValidating)

	opCtx, cancel := context.WithCancel(context.Background())
	op.cancel = cancel

	m.mu.Lock()
	m.ops[op.ID] = op
	m.mu.Unlock()
	m.emit(op)

	reject := func(cause error) (*Operation, error) {
		op.mu.Lock()
		op.errs = append(op.errs, cause.Error())
		op.mu.Unlock()
		op.setStatus(StatusRejected)
		m.emit(op)
		cancel()
		m.persist(op, p)
		return op, cause
	}

	if p.Type == config.TypeCrawling {
		return reject(errors.NewInputError(
			"Project does not support uploads",
			fmt.Sprintf("project %q is a crawling project", projectName),
			"Upload into a data or storage project instead",
		))
	}

	adapter, err := m.registry.For(source.Type)
	if err != nil {
		return reject(err)
	}

	if res := config.Validate(p.Type, p.Settings); !res.Valid {
		return reject(errors.NewConfigError(
			"Project settings are invalid",
			strings.Join(res.Errors, "; "),
			"Fix the project settings before uploading",
			nil,
		))
	}

	validation, err := adapter.Validate(ctx, source)
	if err != nil {
		return reject(err)
	}
	if !validation.OK {
		return reject(errors.NewInputError(
			"Upload source failed validation",
			strings.Join(validation.Errors, "; "),
			"Check the source location and credentials",
		))
	}

	go m.run(opCtx, op, p, adapter, dryRun)
	return op, nil
}

// Get returns a tracked operation by id.
func (m *Manager) Get(id uuid.UUID) (*Operation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	return op, ok
}

// Cancel stops a running operation if it is in a cancellable state.
func (m *Manager) Cancel(id uuid.UUID) bool {
	op, ok := m.Get(id)
	if !ok {
		return false
	}
	return op.Cancel()
}

// Janitor removes completed operations older than maxAge from memory,
// the in-process counterpart to a database vacuum.
func (m *Manager) Janitor(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = defaultJanitorMaxAge
	}
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, op := range m.ops {
		op.mu.Lock()
		done := op.completedAt != nil && op.completedAt.Before(cutoff)
		op.mu.Unlock()
		if done {
			delete(m.ops, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) run(ctx context.Context, op *Operation, p *project.Project, adapter Adapter, dryRun bool) {
	defer m.persist(op, p)

	// Per-operation wall clock, when the project configures one.
	if ts := intSetting(p.Settings, "timeout_seconds", 0); ts > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(ts)*time.Second)
		defer tcancel()
	}

	now := time.Now().UTC()
	op.mu.Lock()
	op.startedAt = &now
	op.mu.Unlock()

	op.setStatus(StatusDownloading)
	m.emit(op)

	paths, listErrs := adapter.List(ctx, op.Source)
	var files []string
	for path := range paths {
		files = append(files, path)
	}
	if err := <-listErrs; err != nil {
		m.fail(op, "Failed to enumerate source: "+err.Error())
		return
	}

	op.mu.Lock()
	op.filesTotal = len(files)
	for _, f := range files {
		if stat, err := adapter.Stat(ctx, op.Source, f); err == nil {
			op.bytesTotal += stat.Size
		}
	}
	op.mu.Unlock()
	m.emit(op)

	maxFileSize := int64Setting(p.Settings, "max_file_size", 10*1024*1024)
	allowedFormats := stringSliceSetting(p.Settings, "allowed_formats")
	retryAttempts := intSetting(p.Settings, "retry_attempts", 3)
	concurrency := intSetting(p.Settings, "concurrent_uploads", 3)
	if concurrency < 1 {
		concurrency = 1
	}

	handler, err := m.factory.For(p.Type)
	if err != nil {
		m.fail(op, err.Error())
		return
	}

	tempDir := m.layout.ProjectTempDir(p.Name)
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		m.fail(op, "Failed to create temp directory: "+err.Error())
		return
	}

	op.setStatus(StatusProcessing)
	m.emit(op)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, f := range files {
		f := f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			m.processOne(gctx, op, p, handler, adapter, f, tempDir, maxFileSize, allowedFormats, retryAttempts, dryRun)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-file failures are recorded on op, not propagated

	op.mu.Lock()
	failed := op.filesFailed
	cancelled := ctx.Err() != nil
	op.mu.Unlock()

	completed := time.Now().UTC()
	op.mu.Lock()
	op.completedAt = &completed
	op.mu.Unlock()

	// The source's reliability accumulators move once per operation, at
	// the terminal transition.
	switch {
	case cancelled:
		op.setStatus(StatusCancelled)
		op.Source.RecordFailure()
	case failed > 0:
		op.setStatus(StatusFailed)
		op.Source.RecordFailure()
	default:
		op.setStatus(StatusComplete)
		op.Source.RecordSuccess()
	}
	m.emit(op)
}

// progressEmitStride throttles bytes-progress notifications: at most one
// emitted event per MiB transferred per file. File-completion events are
// never throttled.
const progressEmitStride = 1 << 20

// processOne fetches one file to a unique temp path, validates it against
// the project's format/size rules, dispatches it to the target handler, and
// always cleans up the temp file. Transient fetch failures are retried up
// to retryAttempts times with bounded backoff, resuming from the partial
// temp file where the adapter left one behind. Under dryRun the size and
// format checks still run and each surviving file is recorded as a
// success; only the fetch and dispatch are skipped.
func (m *Manager) processOne(ctx context.Context, op *Operation, p *project.Project, handler project.Handler, adapter Adapter, remotePath, tempDir string, maxFileSize int64, allowedFormats []string, retryAttempts int, dryRun bool) {
	op.mu.Lock()
	op.currentFile = remotePath
	op.currentStage = "stat"
	op.mu.Unlock()
	m.emit(op)

	stat, err := adapter.Stat(ctx, op.Source, remotePath)
	if err == nil && stat.Size > maxFileSize {
		m.recordFileResult(op, remotePath, false, true, fmt.Sprintf("SIZE_LIMIT_EXCEEDED: %d exceeds max_file_size %d", stat.Size, maxFileSize))
		return
	}

	baseName := filenameFor(remotePath, stat)
	ext := strings.TrimPrefix(filepath.Ext(baseName), ".")
	if !formatAllowed(ext, allowedFormats) {
		m.recordFileResult(op, remotePath, false, true, "format not allowed: "+ext)
		return
	}

	if dryRun {
		m.recordFileResult(op, remotePath, true, false, "")
		return
	}

	// Each file gets its own temp subdirectory so concurrent fetches of
	// same-named files from different source directories never collide,
	// while the leaf name stays the original filename: storageHandler
	// derives the stored Filename from the fetched path's basename.
	fileTempDir := filepath.Join(tempDir, "upload_"+uuid.New().String())
	if err := os.MkdirAll(fileTempDir, 0o750); err != nil {
		m.recordFileResult(op, remotePath, false, true, "failed to create temp directory: "+err.Error())
		return
	}
	defer os.RemoveAll(fileTempDir)
	tempPath := filepath.Join(fileTempDir, baseName)

	var fetchErr error
	var lastDone, lastEmit int64
	onBytes := func(done, total int64) {
		if done < lastDone {
			// The adapter restarted from scratch (e.g. the server ignored a
			// Range request); keep bytesProcessed monotonic.
			lastDone = 0
		}
		op.mu.Lock()
		op.bytesProcessed += done - lastDone
		emit := done-lastEmit >= progressEmitStride
		if emit {
			op.updateEstimateLocked()
		}
		op.mu.Unlock()
		lastDone = done
		if emit {
			lastEmit = done
			m.emit(op)
		}
	}
	for attempt := 0; attempt <= retryAttempts; attempt++ {
		if attempt > 0 {
			op.setStatus(StatusRetrying)
			m.emit(op)
			time.Sleep(backoff(attempt))
		}
		op.mu.Lock()
		op.currentStage = "downloading"
		op.mu.Unlock()

		var offset int64
		if attempt > 0 {
			if info, err := os.Stat(tempPath); err == nil {
				offset = info.Size()
			}
		}
		if offset > 0 {
			lastDone = offset
			fetchErr = adapter.Resume(ctx, op.Source, remotePath, tempPath, offset, onBytes)
		} else {
			lastDone = 0
			fetchErr = adapter.Fetch(ctx, op.Source, remotePath, tempPath, onBytes)
		}
		if fetchErr == nil || !isTransient(fetchErr) {
			break
		}
		op.setStatus(StatusProcessing)
	}
	if fetchErr != nil {
		m.recordFileResult(op, remotePath, false, true, fetchErr.Error())
		return
	}

	op.mu.Lock()
	op.currentStage = "dispatching"
	op.mu.Unlock()

	resolved, skip, err := m.resolveConflict(p, baseName, op.ConflictPolicy)
	if err != nil {
		m.recordFileResult(op, remotePath, false, true, err.Error())
		return
	}
	if skip {
		m.recordFileResult(op, remotePath, false, false, "")
		return
	}
	if resolved != baseName {
		renamedPath := filepath.Join(fileTempDir, resolved)
		if err := os.Rename(tempPath, renamedPath); err != nil {
			m.recordFileResult(op, remotePath, false, true, "failed to rename for conflict resolution: "+err.Error())
			return
		}
		tempPath = renamedPath
	}

	if err := m.dispatch(ctx, p, handler, remotePath, tempPath); err != nil {
		m.recordFileResult(op, remotePath, false, true, err.Error())
		return
	}
	m.recordFileResult(op, remotePath, true, false, "")
}

// resolveConflict checks whether filename already exists in a storage
// project and applies the operation's conflict policy. It is a no-op for
// non-storage project types, which have no filename-uniqueness concept.
// ConflictAsk has no interactive channel in this asynchronous flow, so it
// is treated as rename, the same non-destructive default the CLI offers.
func (m *Manager) resolveConflict(p *project.Project, filename string, policy ConflictPolicy) (resolvedName string, skip bool, err error) {
	if p.Type != config.TypeStorage {
		return filename, false, nil
	}
	existing, err := m.repo.GetStorageFileByFilename(p.Name, filename)
	if err != nil {
		return "", false, err
	}
	if existing == nil {
		return filename, false, nil
	}

	switch policy {
	case ConflictSkip:
		return "", true, nil
	case ConflictOverwrite:
		if err := m.repo.DeleteStorageFileByFilename(p.Name, filename); err != nil {
			return "", false, err
		}
		return filename, false, nil
	case ConflictBackup:
		if err := m.backupExisting(p, existing); err != nil {
			return "", false, err
		}
		if err := m.repo.DeleteStorageFileByFilename(p.Name, filename); err != nil {
			return "", false, err
		}
		return filename, false, nil
	default: // ConflictRename, ConflictAsk
		next, err := project.ResolveRenameConflict(m.repo, p.Name, filename)
		if err != nil {
			return "", false, err
		}
		return next, false, nil
	}
}

// backupExisting copies a storage file's current content into the
// project's archive subdirectory before it is overwritten.
func (m *Manager) backupExisting(p *project.Project, f *project.StorageFile) error {
	archiveDir := filepath.Join(m.layout.ProjectRoot(p.Name), "archive")
	if err := os.MkdirAll(archiveDir, 0o750); err != nil {
		return errors.NewPermissionError("Cannot back up file", "Failed to create archive directory", "Check directory permissions", err)
	}
	dest := filepath.Join(archiveDir, time.Now().UTC().Format("20060102_150405")+"_"+f.Filename)
	src, err := os.Open(f.FilePath)
	if err != nil {
		return errors.NewInternalError("Cannot back up file", "Failed to open existing file", "Retry the operation", err)
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return errors.NewPermissionError("Cannot back up file", "Failed to create backup file", "Check directory permissions", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return errors.NewInternalError("Cannot back up file", "Failed to copy file contents", "Retry the operation", err)
	}
	return nil
}

// dispatch hands the fetched temp file to the project's storage or data
// handler; filename conflicts have already been resolved by the caller.
func (m *Manager) dispatch(ctx context.Context, p *project.Project, handler project.Handler, remotePath, tempPath string) error {
	switch h := handler.(type) {
	case interface {
		StoreFile(ctx context.Context, p *project.Project, filePath string, metadata map[string]any) (*project.StorageFile, error)
	}:
		_, err := h.StoreFile(ctx, p, tempPath, map[string]any{"source_path": remotePath})
		return err
	case interface {
		ProcessDocument(ctx context.Context, p *project.Project, filePath string) (*project.DataDocument, error)
	}:
		_, err := h.ProcessDocument(ctx, p, tempPath)
		return err
	default:
		return errors.NewInternalError("Cannot dispatch upload", "Project type has no upload sink", "This is a bug", nil)
	}
}

func (m *Manager) recordFileResult(op *Operation, remotePath string, success bool, failed bool, errMsg string) {
	op.mu.Lock()
	op.filesProcessed++
	if success {
		op.filesSucceeded++
	} else if failed {
		op.filesFailed++
		if errMsg != "" {
			op.errs = append(op.errs, remotePath+": "+errMsg)
		}
	} else {
		op.filesSkipped++
	}
	op.currentFile = ""
	op.mu.Unlock()
	m.emit(op)
}

func (m *Manager) fail(op *Operation, msg string) {
	op.mu.Lock()
	op.errs = append(op.errs, msg)
	op.mu.Unlock()
	op.setStatus(StatusFailed)
	op.Source.RecordFailure()
	now := time.Now().UTC()
	op.mu.Lock()
	op.completedAt = &now
	op.mu.Unlock()
	m.emit(op)
}

func (m *Manager) persist(op *Operation, p *project.Project) {
	op.mu.Lock()
	rec := &project.UploadOperationRecord{
		ID:             op.ID.String(),
		ProjectID:      p.ID.String(),
		Source:         map[string]any{"type": string(op.Source.Type), "location": op.Source.Location},
		Status:         string(op.status),
		ConflictPolicy: string(op.ConflictPolicy),
		FilesTotal:     op.filesTotal,
		FilesProcessed: op.filesProcessed,
		FilesSucceeded: op.filesSucceeded,
		FilesFailed:    op.filesFailed,
		FilesSkipped:   op.filesSkipped,
		BytesTotal:     op.bytesTotal,
		BytesProcessed: op.bytesProcessed,
		CurrentFile:    op.currentFile,
		CurrentStage:   op.currentStage,
		Errors:         op.errs,
		StartedAt:      op.startedAt,
		CompletedAt:    op.completedAt,
	}
	op.mu.Unlock()
	m.repo.SaveUploadOperation(rec) //nolint:errcheck // best-effort history persistence
}

// isTransient reports whether a fetch failure is worth retrying. Network
// interruptions are; validation, auth, and permission failures are not.
func isTransient(err error) bool {
	ue, ok := errors.As(err)
	if !ok {
		return false
	}
	return ue.Kind == errors.KindNetwork
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func filenameFor(remotePath string, stat StatResult) string {
	if stat.Filename != "" {
		return stat.Filename
	}
	return filepath.Base(remotePath)
}

func formatAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

func int64Setting(m map[string]any, key string, fallback int64) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func intSetting(m map[string]any, key string, fallback int) int {
	return int(int64Setting(m, key, int64(fallback)))
}

func stringSliceSetting(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
