// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/behemotion/docbro/internal/errors"
	"github.com/behemotion/docbro/pkg/config"
	"github.com/google/uuid"
)

var dataSubdirs = []string{"documents", "processed", "vectors", "temp", "logs"}

// dataHandler implements Handler for data-type (document/RAG) projects.
type dataHandler struct {
	repo   *Repository
	layout Layout

	mu     sync.Mutex
	stores map[string]VectorStore // keyed by project name
}

func (h *dataHandler) Initialize(ctx context.Context, p *Project) error {
	root := h.layout.ProjectRoot(p.Name)
	for _, sub := range dataSubdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o750); err != nil {
			return errors.NewPermissionError("Cannot initialize data project", "Failed to create "+sub, "Check directory permissions", err)
		}
	}

	backend, _ := p.Settings["vector_store_type"].(string)
	store, err := NewVectorStore(backend)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.stores == nil {
		h.stores = map[string]VectorStore{}
	}
	h.stores[p.Name] = store
	h.mu.Unlock()
	return nil
}

func (h *dataHandler) Cleanup(ctx context.Context, p *Project, force bool) error {
	h.mu.Lock()
	delete(h.stores, p.Name)
	h.mu.Unlock()

	tempDir := h.layout.ProjectTempDir(p.Name)
	if err := os.RemoveAll(tempDir); err != nil && !force {
		return errors.NewInternalError("Cannot clean up data project", "Failed to remove temp directory", "Retry with force to ignore this error", err)
	}
	return nil
}

func (h *dataHandler) DefaultSettings() map[string]any {
	return config.DefaultSettings(config.TypeData)
}

func (h *dataHandler) ValidateSettings(settings map[string]any) config.ValidationResult {
	return config.Validate(config.TypeData, settings)
}

func (h *dataHandler) ProjectStats(ctx context.Context, p *Project) (map[string]any, error) {
	docs, err := h.repo.ListDataDocuments(p.Name)
	if err != nil {
		return nil, err
	}
	var chunks int
	for _, d := range docs {
		chunks += d.ChunkCount
	}
	return map[string]any{
		"document_count": len(docs),
		"chunk_count":    chunks,
	}, nil
}

func (h *dataHandler) vectorStore(name string) VectorStore {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stores[name]
}

// ProcessDocument extracts text, chunks it, submits chunks to the vector
// store, persists the DataDocument, and computes a quality score.
func (h *dataHandler) ProcessDocument(ctx context.Context, p *Project, filePath string) (*DataDocument, error) {
	chunkSize := intSetting(p.Settings, "chunk_size", 500)
	chunkOverlap := intSetting(p.Settings, "chunk_overlap", 50)
	embeddingModel, _ := p.Settings["embedding_model"].(string)

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.NewInputError("Cannot read file", "Failed to read "+filePath, "Check the file path and permissions")
	}

	content, procErrors := extractText(filePath, raw)
	chunks := chunkText(content, chunkSize, chunkOverlap)

	doc := &DataDocument{
		ID:                uuid.New(),
		ProjectID:         p.ID,
		Title:             filepath.Base(filePath),
		Content:           content,
		SourcePath:        filePath,
		UploadSource:      map[string]any{},
		ProcessedDate:     nowUTC(),
		ChunkCount:        len(chunks),
		WordCount:         countWords(content),
		CharacterCount:    len(content),
		EmbeddingModel:    embeddingModel,
		ChunkSize:         chunkSize,
		ChunkOverlap:      chunkOverlap,
		ProcessingSuccess: len(procErrors) == 0,
		ProcessingErrors:  procErrors,
	}

	collection := "docbro_" + p.Name
	store := h.vectorStore(p.Name)
	for i, c := range chunks {
		chunkID := uuid.New()
		doc.Chunks = append(doc.Chunks, DocumentChunk{
			ID: chunkID, DocumentID: doc.ID, ChunkIndex: i, StartChar: c.start, Content: c.text,
		})
		if store != nil {
			if err := store.Upsert(collection, chunkID.String(), doc.ID.String(), c.text); err != nil {
				doc.ProcessingErrors = append(doc.ProcessingErrors, err.Error())
			}
		}
	}
	doc.ProcessingSuccess = len(doc.ProcessingErrors) == 0

	score := qualityScore(len(content), len(doc.ProcessingErrors), len(chunks))
	doc.QualityScore = &score

	if err := h.repo.SaveDataDocument(p.Name, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SearchDocuments delegates to the vector store and enriches hits with
// document metadata.
func (h *dataHandler) SearchDocuments(p *Project, query string, limit int) ([]map[string]any, error) {
	store := h.vectorStore(p.Name)
	if store == nil {
		return nil, nil
	}
	hits, err := store.Search("docbro_"+p.Name, query, limit)
	if err != nil {
		return nil, err
	}

	docs, err := h.repo.ListDataDocuments(p.Name)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*DataDocument, len(docs))
	for _, d := range docs {
		byID[d.ID.String()] = d
	}

	out := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		doc := byID[hit.DocumentID]
		if doc == nil {
			continue
		}
		out = append(out, map[string]any{
			"chunk_id":    hit.ChunkID,
			"document_id": hit.DocumentID,
			"score":       hit.Score,
			"title":       doc.Title,
			"source_path": doc.SourcePath,
		})
	}
	return out, nil
}

// extractText renders file content to plain text per extension.
func extractText(path string, raw []byte) (string, []string) {
	ext := extensionOf(path)
	switch ext {
	case "txt", "md", "markdown":
		return string(raw), nil
	case "html", "htm":
		return stripHTMLTags(string(raw)), nil
	case "json":
		return string(raw), nil
	default:
		return "[unsupported format: " + ext + "]", []string{"no text extractor for format " + ext}
	}
}

func stripHTMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

type textChunk struct {
	start int
	text  string
}

// chunkText splits content into overlapping windows, preferring to break
// on the last space past the chunk midpoint.
func chunkText(content string, size, overlap int) []textChunk {
	if size <= 0 || len(content) == 0 {
		return nil
	}
	var chunks []textChunk
	start := 0
	for start < len(content) {
		end := start + size
		if end > len(content) {
			end = len(content)
		} else {
			mid := start + size/2
			if sp := strings.LastIndex(content[mid:end], " "); sp >= 0 {
				end = mid + sp
			}
		}
		if end <= start {
			end = start + size
			if end > len(content) {
				end = len(content)
			}
		}
		chunks = append(chunks, textChunk{start: start, text: content[start:end]})
		if end >= len(content) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// qualityScore penalizes short content, processing errors, and chunk
// counts outside a healthy range, capped at 1.0.
func qualityScore(contentLen, errorCount, chunkCount int) float64 {
	score := 1.0
	switch {
	case contentLen < 100:
		score *= 0.5
	case contentLen < 500:
		score *= 0.8
	}

	errorFactor := 1 - 0.1*float64(errorCount)
	if errorFactor < 0.1 {
		errorFactor = 0.1
	}
	score *= errorFactor

	switch {
	case chunkCount < 2:
		score *= 0.7
	case chunkCount >= 5 && chunkCount <= 50:
		score *= 1.1
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func intSetting(m map[string]any, key string, fallback int) int {
	if v, ok := asInt(m[key]); ok {
		return v
	}
	return fallback
}
