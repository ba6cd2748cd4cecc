// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

// DocumentChunk is one slice of a DataDocument's content, persisted so
// search_documents can map vector-store hits back to source text.
type DocumentChunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	StartChar  int
	Content    string
}

// DataDocument is the persisted record for one processed document in a
// data-type project.
type DataDocument struct {
	ID                uuid.UUID
	ProjectID         uuid.UUID
	Title             string
	Content           string
	SourcePath        string
	UploadSource      map[string]any
	ProcessedDate     time.Time
	ChunkCount        int
	WordCount         int
	CharacterCount    int
	Language          string
	EmbeddingModel    string
	ChunkSize         int
	ChunkOverlap      int
	ProcessingSuccess bool
	ProcessingErrors  []string
	QualityScore      *float64
	Chunks            []DocumentChunk
}

// SaveDataDocument persists a document and its chunks transactionally.
func (r *Repository) SaveDataDocument(projectName string, d *DataDocument) error {
	h, err := r.projectHandle(projectName, config.TypeData)
	if err != nil {
		return err
	}
	source, _ := json.Marshal(d.UploadSource)
	procErrors, _ := json.Marshal(d.ProcessingErrors)

	h.mu.Lock()
	defer h.mu.Unlock()
	tx, err := h.db.Begin()
	if err != nil {
		return errors.NewDatabaseError("Cannot save document", "Failed to start transaction", "This is a bug", err)
	}
	defer tx.Rollback()

	var language any
	if d.Language != "" {
		language = d.Language
	}
	var quality any
	if d.QualityScore != nil {
		quality = *d.QualityScore
	}

	_, err = tx.Exec(`
		INSERT INTO data_documents (id, project_id, title, content, source_path, upload_source,
			processed_date, chunk_count, word_count, character_count, language, embedding_model,
			chunk_size, chunk_overlap, processing_success, processing_errors, quality_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, content=excluded.content, chunk_count=excluded.chunk_count,
			word_count=excluded.word_count, character_count=excluded.character_count,
			processing_success=excluded.processing_success, processing_errors=excluded.processing_errors,
			quality_score=excluded.quality_score`,
		d.ID.String(), d.ProjectID.String(), d.Title, d.Content, d.SourcePath, string(source),
		d.ProcessedDate.Format(time.RFC3339), d.ChunkCount, d.WordCount, d.CharacterCount,
		language, d.EmbeddingModel, d.ChunkSize, d.ChunkOverlap, d.ProcessingSuccess,
		string(procErrors), quality)
	if err != nil {
		return errors.NewDatabaseError("Cannot save document", "Failed to write data_documents row", "Check database file permissions", err)
	}

	if _, err := tx.Exec(`DELETE FROM document_chunks WHERE document_id = ?`, d.ID.String()); err != nil {
		return errors.NewDatabaseError("Cannot save document", "Failed to clear previous chunks", "This is a bug", err)
	}
	for _, c := range d.Chunks {
		_, err := tx.Exec(`INSERT INTO document_chunks (id, document_id, chunk_index, start_char, content)
			VALUES (?, ?, ?, ?, ?)`, c.ID.String(), d.ID.String(), c.ChunkIndex, c.StartChar, c.Content)
		if err != nil {
			return errors.NewDatabaseError("Cannot save document", "Failed to write document_chunks row", "This is a bug", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("Cannot save document", "Failed to commit transaction", "This is a bug", err)
	}
	return nil
}

// ListDataDocuments returns every processed document for a project, most
// recently processed first.
func (r *Repository) ListDataDocuments(projectName string) ([]*DataDocument, error) {
	h, err := r.projectHandle(projectName, config.TypeData)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	rows, err := h.db.Query(`
		SELECT id, project_id, title, content, source_path, upload_source, processed_date,
			chunk_count, word_count, character_count, language, embedding_model, chunk_size,
			chunk_overlap, processing_success, processing_errors, quality_score
		FROM data_documents ORDER BY processed_date DESC`)
	if err != nil {
		return nil, errors.NewDatabaseError("Cannot list documents", "Query failed", "This is a bug", err)
	}
	defer rows.Close()

	var out []*DataDocument
	for rows.Next() {
		d, err := scanDataDocument(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("Cannot read document", "Failed to decode data_documents row", "This is a bug", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDataDocument(row interface{ Scan(...any) error }) (*DataDocument, error) {
	var (
		id, projectID, title, content, sourcePath, source, processedDate string
		language, embeddingModel                                        sql.NullString
		chunkCount, wordCount, characterCount, chunkSize, chunkOverlap   int
		processingSuccess                                               bool
		processingErrors                                                string
		qualityScore                                                    sql.NullFloat64
	)
	if err := row.Scan(&id, &projectID, &title, &content, &sourcePath, &source, &processedDate,
		&chunkCount, &wordCount, &characterCount, &language, &embeddingModel, &chunkSize,
		&chunkOverlap, &processingSuccess, &processingErrors, &qualityScore); err != nil {
		return nil, err
	}
	d := &DataDocument{
		Title: title, Content: content, SourcePath: sourcePath,
		ChunkCount: chunkCount, WordCount: wordCount, CharacterCount: characterCount,
		EmbeddingModel: embeddingModel.String, ChunkSize: chunkSize, ChunkOverlap: chunkOverlap,
		ProcessingSuccess: processingSuccess, Language: language.String,
	}
	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if d.ProjectID, err = uuid.Parse(projectID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(source), &d.UploadSource); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(processingErrors), &d.ProcessingErrors); err != nil {
		return nil, err
	}
	if d.ProcessedDate, err = time.Parse(time.RFC3339, processedDate); err != nil {
		return nil, err
	}
	if qualityScore.Valid {
		d.QualityScore = &qualityScore.Float64
	}
	return d, nil
}

// SaveUploadOperation inserts or replaces an upload operation row in the
// registry.
func (r *Repository) SaveUploadOperation(rec *UploadOperationRecord) error {
	source, _ := json.Marshal(rec.Source)
	errs, _ := json.Marshal(rec.Errors)

	var startedAt, completedAt any
	if rec.StartedAt != nil {
		startedAt = rec.StartedAt.Format(time.RFC3339)
	}
	if rec.CompletedAt != nil {
		completedAt = rec.CompletedAt.Format(time.RFC3339)
	}

	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()
	_, err := r.registry.db.Exec(`
		INSERT INTO upload_operations (id, project_id, source, status, conflict_policy,
			files_total, files_processed, files_succeeded, files_failed, files_skipped,
			bytes_total, bytes_processed, current_file, current_stage, errors, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, files_total=excluded.files_total,
			files_processed=excluded.files_processed, files_succeeded=excluded.files_succeeded,
			files_failed=excluded.files_failed, files_skipped=excluded.files_skipped,
			bytes_total=excluded.bytes_total, bytes_processed=excluded.bytes_processed,
			current_file=excluded.current_file, current_stage=excluded.current_stage,
			errors=excluded.errors, started_at=excluded.started_at, completed_at=excluded.completed_at`,
		rec.ID, rec.ProjectID, string(source), rec.Status, rec.ConflictPolicy,
		rec.FilesTotal, rec.FilesProcessed, rec.FilesSucceeded, rec.FilesFailed, rec.FilesSkipped,
		rec.BytesTotal, rec.BytesProcessed, rec.CurrentFile, rec.CurrentStage,
		string(errs), startedAt, completedAt)
	if err != nil {
		return errors.NewDatabaseError("Cannot save upload operation", "Failed to write upload_operations row", "Check database file permissions", err)
	}
	return nil
}

// ListUploadOperations returns operations for a project, optionally
// filtered by status.
func (r *Repository) ListUploadOperations(projectID string, status string) ([]*UploadOperationRecord, error) {
	query := `SELECT id, project_id, source, status, conflict_policy, files_total, files_processed,
		files_succeeded, files_failed, files_skipped, bytes_total, bytes_processed, current_file,
		current_stage, errors, started_at, completed_at FROM upload_operations WHERE project_id = ?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}

	r.registry.mu.RLock()
	defer r.registry.mu.RUnlock()
	rows, err := r.registry.db.Query(query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("Cannot list upload operations", "Query failed", "This is a bug", err)
	}
	defer rows.Close()

	var out []*UploadOperationRecord
	for rows.Next() {
		rec, err := scanUploadOperation(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("Cannot read upload operation", "Failed to decode row", "This is a bug", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanUploadOperation(row interface{ Scan(...any) error }) (*UploadOperationRecord, error) {
	var (
		rec                       UploadOperationRecord
		source, errs              string
		startedAt, completedAt    sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.ProjectID, &source, &rec.Status, &rec.ConflictPolicy,
		&rec.FilesTotal, &rec.FilesProcessed, &rec.FilesSucceeded, &rec.FilesFailed, &rec.FilesSkipped,
		&rec.BytesTotal, &rec.BytesProcessed, &rec.CurrentFile, &rec.CurrentStage, &errs,
		&startedAt, &completedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(source), &rec.Source); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(errs), &rec.Errors); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339, startedAt.String)
		if err != nil {
			return nil, err
		}
		rec.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &t
	}
	return &rec, nil
}
