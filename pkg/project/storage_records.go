// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"database/sql"
	"encoding/json"
	"os"
	"time"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

// StorageFile is the persisted record for one file in a storage-type
// project.
type StorageFile struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	Filename         string
	FilePath         string
	FileSize         int64
	MimeType         string
	Checksum         string
	Tags             []string
	Metadata         map[string]any
	UploadSource     map[string]any
	UploadDate       time.Time
	LastAccessed     *time.Time
	AccessCount      int
	IsCompressed     bool
	CompressionRatio float64
}

// FileExtension derives the lowercased extension, without the dot.
func (f *StorageFile) FileExtension() string {
	return extensionOf(f.Filename)
}

// SaveStorageFile inserts or replaces a storage file record in the named
// project's per-project database.
func (r *Repository) SaveStorageFile(projectName string, f *StorageFile) error {
	h, err := r.projectHandle(projectName, config.TypeStorage)
	if err != nil {
		return err
	}
	tags, _ := json.Marshal(f.Tags)
	metadata, _ := json.Marshal(f.Metadata)
	source, _ := json.Marshal(f.UploadSource)

	var lastAccessed any
	if f.LastAccessed != nil {
		lastAccessed = f.LastAccessed.Format(time.RFC3339)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.db.Exec(`
		INSERT INTO storage_files (id, project_id, filename, file_path, file_size, mime_type,
			checksum, tags, metadata, upload_source, upload_date, last_accessed, access_count,
			is_compressed, compression_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename=excluded.filename, file_path=excluded.file_path, file_size=excluded.file_size,
			mime_type=excluded.mime_type, checksum=excluded.checksum, tags=excluded.tags,
			metadata=excluded.metadata, upload_source=excluded.upload_source,
			last_accessed=excluded.last_accessed, access_count=excluded.access_count,
			is_compressed=excluded.is_compressed, compression_ratio=excluded.compression_ratio`,
		f.ID.String(), f.ProjectID.String(), f.Filename, f.FilePath, f.FileSize, f.MimeType,
		f.Checksum, string(tags), string(metadata), string(source),
		f.UploadDate.Format(time.RFC3339), lastAccessed, f.AccessCount,
		f.IsCompressed, f.CompressionRatio)
	if err != nil {
		return errors.NewDatabaseError("Cannot save file record", "Failed to write storage_files row", "Check database file permissions", err)
	}

	tagsText := joinStrings(f.Tags, " ")
	metadataText := flattenMetadataValues(f.Metadata)
	_, err = h.db.Exec(`
		INSERT INTO file_inventory (file_id, tags_text, metadata_text, content_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET tags_text=excluded.tags_text, metadata_text=excluded.metadata_text`,
		f.ID.String(), tagsText, metadataText, f.Checksum)
	if err != nil {
		return errors.NewDatabaseError("Cannot index file", "Failed to write file_inventory row", "Check database file permissions", err)
	}
	return nil
}

func scanStorageFile(row interface{ Scan(...any) error }) (*StorageFile, error) {
	var (
		id, projectID, filename, filePath, mimeType, checksum string
		tags, metadata, source, uploadDate                    string
		lastAccessed                                           sql.NullString
		fileSize                                               int64
		accessCount                                            int
		isCompressed                                           bool
		compressionRatio                                       float64
	)
	if err := row.Scan(&id, &projectID, &filename, &filePath, &fileSize, &mimeType, &checksum,
		&tags, &metadata, &source, &uploadDate, &lastAccessed, &accessCount,
		&isCompressed, &compressionRatio); err != nil {
		return nil, err
	}
	f := &StorageFile{
		Filename: filename, FilePath: filePath, FileSize: fileSize, MimeType: mimeType,
		Checksum: checksum, AccessCount: accessCount, IsCompressed: isCompressed,
		CompressionRatio: compressionRatio,
	}
	var err error
	if f.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if f.ProjectID, err = uuid.Parse(projectID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &f.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &f.Metadata); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(source), &f.UploadSource); err != nil {
		return nil, err
	}
	if f.UploadDate, err = time.Parse(time.RFC3339, uploadDate); err != nil {
		return nil, err
	}
	if lastAccessed.Valid {
		t, err := time.Parse(time.RFC3339, lastAccessed.String)
		if err != nil {
			return nil, err
		}
		f.LastAccessed = &t
	}
	return f, nil
}

const storageFileColumns = `id, project_id, filename, file_path, file_size, mime_type, checksum,
	tags, metadata, upload_source, upload_date, last_accessed, access_count, is_compressed, compression_ratio`

// GetStorageFileByFilename looks up a file by its current filename, used to
// detect conflicts before a new upload is written.
func (r *Repository) GetStorageFileByFilename(projectName, filename string) (*StorageFile, error) {
	h, err := r.projectHandle(projectName, config.TypeStorage)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	row := h.db.QueryRow(`SELECT `+storageFileColumns+` FROM storage_files WHERE filename = ?`, filename)
	f, err := scanStorageFile(row)
	h.mu.RUnlock()
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseError("Cannot read file record", "Failed to decode storage_files row", "This is a bug", err)
	}
	return f, nil
}

// ListStorageFiles returns every file record for a project, ordered by
// upload date descending.
func (r *Repository) ListStorageFiles(projectName string) ([]*StorageFile, error) {
	h, err := r.projectHandle(projectName, config.TypeStorage)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	rows, err := h.db.Query(`SELECT ` + storageFileColumns + ` FROM storage_files ORDER BY upload_date DESC`)
	if err != nil {
		return nil, errors.NewDatabaseError("Cannot list files", "Query failed", "This is a bug", err)
	}
	defer rows.Close()

	var out []*StorageFile
	for rows.Next() {
		f, err := scanStorageFile(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("Cannot read file record", "Failed to decode storage_files row", "This is a bug", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteStorageFileByFilename removes a file's row and its on-disk content,
// used by the overwrite and backup conflict policies to clear the way for
// a replacement upload.
func (r *Repository) DeleteStorageFileByFilename(projectName, filename string) error {
	f, err := r.GetStorageFileByFilename(projectName, filename)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}

	h, err := r.projectHandle(projectName, config.TypeStorage)
	if err != nil {
		return err
	}
	h.mu.Lock()
	_, err = h.db.Exec(`DELETE FROM storage_files WHERE id = ?`, f.ID.String())
	h.mu.Unlock()
	if err != nil {
		return errors.NewDatabaseError("Cannot delete file record", "Failed to remove storage_files row", "Check database file permissions", err)
	}

	if err := os.Remove(f.FilePath); err != nil && !os.IsNotExist(err) {
		return errors.NewPermissionError("Cannot delete file", "Failed to remove file content", "Check directory permissions", err)
	}
	return nil
}

func extensionOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return toLowerASCII(filename[i+1:])
		}
		if filename[i] == '/' {
			break
		}
	}
	return ""
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func flattenMetadataValues(m map[string]any) string {
	out := ""
	for _, v := range m {
		if out != "" {
			out += " "
		}
		out += toString(v)
	}
	return out
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}
