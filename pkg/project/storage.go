// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

var storageSubdirs = []string{"files", "archive", "thumbnails", "temp", "exports", "logs"}

// storageHandler implements Handler for storage-type (file vault) projects.
type storageHandler struct {
	repo   *Repository
	layout Layout
}

func (h *storageHandler) Initialize(ctx context.Context, p *Project) error {
	root := h.layout.ProjectRoot(p.Name)
	for _, sub := range storageSubdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o750); err != nil {
			return errors.NewPermissionError("Cannot initialize storage project", "Failed to create "+sub, "Check directory permissions", err)
		}
	}
	return nil
}

func (h *storageHandler) Cleanup(ctx context.Context, p *Project, force bool) error {
	tempDir := h.layout.ProjectTempDir(p.Name)
	if err := os.RemoveAll(tempDir); err != nil && !force {
		return errors.NewInternalError("Cannot clean up storage project", "Failed to remove temp directory", "Retry with force to ignore this error", err)
	}
	return nil
}

func (h *storageHandler) DefaultSettings() map[string]any {
	return config.DefaultSettings(config.TypeStorage)
}

func (h *storageHandler) ValidateSettings(settings map[string]any) config.ValidationResult {
	return config.Validate(config.TypeStorage, settings)
}

func (h *storageHandler) ProjectStats(ctx context.Context, p *Project) (map[string]any, error) {
	files, err := h.repo.ListStorageFiles(p.Name)
	if err != nil {
		return nil, err
	}
	var totalSize int64
	for _, f := range files {
		totalSize += f.FileSize
	}
	return map[string]any{"file_count": len(files), "total_size": totalSize}, nil
}

var mimeByExtension = map[string]string{
	"txt": "text/plain", "md": "text/markdown", "html": "text/html", "htm": "text/html",
	"json": "application/json", "pdf": "application/pdf", "png": "image/png",
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "gif": "image/gif", "zip": "application/zip",
	"csv": "text/csv", "xml": "application/xml",
}

func detectMIME(ext string) string {
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

func sizeBucket(size int64) string {
	switch {
	case size < 10*1024:
		return "tiny"
	case size < 1024*1024:
		return "small"
	case size < 100*1024*1024:
		return "medium"
	default:
		return "large"
	}
}

func mimeCategory(mime string) string {
	if idx := strings.IndexByte(mime, '/'); idx >= 0 {
		return mime[:idx]
	}
	return mime
}

// StoreFile enforces size/format limits, copies the file into files/,
// computes its checksum, detects MIME, optionally auto-tags and marks it
// compressed, persists the StorageFile, and indexes it for search.
func (h *storageHandler) StoreFile(ctx context.Context, p *Project, filePath string, metadata map[string]any) (*StorageFile, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, errors.NewInputError("Cannot store file", "Failed to stat "+filePath, "Check the file path")
	}

	maxSize := int64(intSetting(p.Settings, "max_file_size", 10*1024*1024))
	if info.Size() > maxSize {
		return nil, errors.NewInputError(
			"File exceeds size limit",
			fmt.Sprintf("%d bytes exceeds the configured max_file_size of %d", info.Size(), maxSize),
			"Increase max_file_size or choose a smaller file",
		)
	}

	ext := extensionOf(filePath)
	if formats, ok := p.Settings["allowed_formats"].([]any); ok {
		allowed := false
		for _, f := range formats {
			if s, _ := f.(string); s == "*" || strings.EqualFold(s, ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, errors.NewInputError(
				"File format not allowed",
				fmt.Sprintf("format %q is not in allowed_formats", ext),
				"Add the format to allowed_formats or choose a different file",
			)
		}
	}

	id := uuid.New()
	destName := id.String() + "." + ext
	if ext == "" {
		destName = id.String()
	}
	destPath := filepath.Join(h.layout.ProjectRoot(p.Name), "files", destName)

	checksum, err := copyFileWithChecksum(filePath, destPath)
	if err != nil {
		return nil, err
	}

	mime := detectMIME(ext)
	var tags []string
	if b, _ := p.Settings["auto_tagging"].(bool); b {
		tags = []string{"type:" + ext, mimeCategory(mime), "size:" + sizeBucket(info.Size())}
	}

	f := &StorageFile{
		ID: id, ProjectID: p.ID, Filename: filepath.Base(filePath), FilePath: destPath,
		FileSize: info.Size(), MimeType: mime, Checksum: checksum, Tags: tags,
		Metadata: metadata, UploadSource: map[string]any{}, UploadDate: nowUTC(),
	}

	if compress, _ := p.Settings["enable_compression"].(bool); compress && isTextMIME(mime) && info.Size() > 1024 {
		f.IsCompressed = true
		f.CompressionRatio = 0.6 // metadata-only; the file itself stays uncompressed on disk
	}

	if err := h.repo.SaveStorageFile(p.Name, f); err != nil {
		os.Remove(destPath)
		return nil, err
	}
	return f, nil
}

func isTextMIME(mime string) bool {
	return strings.HasPrefix(mime, "text/") || mime == "application/json" || mime == "application/xml"
}

func copyFileWithChecksum(srcPath, destPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", errors.NewInputError("Cannot store file", "Failed to open "+srcPath, "Check the file path and permissions")
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return "", errors.NewPermissionError("Cannot store file", "Failed to create destination file", "Check directory permissions", err)
	}
	defer dest.Close()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dest, h), src); err != nil {
		return "", errors.NewInternalError("Cannot store file", "Failed to copy file contents", "Retry the operation", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RetrieveFile verifies integrity against the stored checksum and updates
// access counters.
func (h *storageHandler) RetrieveFile(p *Project, filename string) ([]byte, error) {
	f, err := h.repo.GetStorageFileByFilename(p.Name, filename)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotFound("File", filename)
	}

	data, err := os.ReadFile(f.FilePath)
	if err != nil {
		return nil, errors.NewInternalError("Cannot retrieve file", "Failed to read stored file", "The file may have been removed from disk", err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != f.Checksum {
		return nil, errors.NewInternalError(
			"File integrity check failed",
			"Stored checksum does not match file contents",
			"The file on disk may be corrupted",
			nil,
		)
	}

	now := nowUTC()
	f.LastAccessed = &now
	f.AccessCount++
	if err := h.repo.SaveStorageFile(p.Name, f); err != nil {
		return nil, err
	}
	return data, nil
}

// TagFile merges normalized tags into an existing file's tag set and
// re-indexes it.
func (h *storageHandler) TagFile(p *Project, filename string, newTags []string) (*StorageFile, error) {
	f, err := h.repo.GetStorageFileByFilename(p.Name, filename)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotFound("File", filename)
	}

	merged := map[string]bool{}
	for _, t := range f.Tags {
		merged[t] = true
	}
	for _, t := range newTags {
		if nt := normalizeTag(t); nt != "" {
			merged[nt] = true
		}
	}
	f.Tags = f.Tags[:0]
	for t := range merged {
		f.Tags = append(f.Tags, t)
	}

	if err := h.repo.SaveStorageFile(p.Name, f); err != nil {
		return nil, err
	}
	return f, nil
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" || len(tag) > 50 || strings.ContainsAny(tag, ",;:|") {
		return ""
	}
	return tag
}

// SearchFilesFilter narrows a search_files call beyond the text query.
type SearchFilesFilter struct {
	FileType string
	MinSize  int64
	MaxSize  int64
	Tags     []string
}

// SearchFiles performs a case-insensitive substring match over
// filename ∪ tags ∪ metadata, then applies filters.
func (h *storageHandler) SearchFiles(p *Project, query string, filter SearchFilesFilter) ([]*StorageFile, error) {
	files, err := h.repo.ListStorageFiles(p.Name)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var out []*StorageFile
	for _, f := range files {
		if q != "" && !matchesQuery(f, q) {
			continue
		}
		if filter.FileType != "" && !strings.EqualFold(f.FileExtension(), filter.FileType) {
			continue
		}
		if filter.MinSize > 0 && f.FileSize < filter.MinSize {
			continue
		}
		if filter.MaxSize > 0 && f.FileSize > filter.MaxSize {
			continue
		}
		if len(filter.Tags) > 0 && !anyTagMatches(f.Tags, filter.Tags) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func matchesQuery(f *StorageFile, q string) bool {
	if strings.Contains(strings.ToLower(f.Filename), q) {
		return true
	}
	for _, t := range f.Tags {
		if strings.Contains(t, q) {
			return true
		}
	}
	for _, v := range f.Metadata {
		if strings.Contains(strings.ToLower(toString(v)), q) {
			return true
		}
	}
	return false
}

func anyTagMatches(have, want []string) bool {
	set := map[string]bool{}
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if set[t] {
			return true
		}
	}
	return false
}

// GetFileInventory returns all storage files sorted by upload date
// descending.
func (h *storageHandler) GetFileInventory(p *Project) ([]*StorageFile, error) {
	return h.repo.ListStorageFiles(p.Name)
}
