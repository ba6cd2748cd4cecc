// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package project

import (
	"fmt"

	"github.com/behemotion/docbro/internal/errors"
)

// VectorHit is one search result returned by a VectorStore.
type VectorHit struct {
	ChunkID    string
	DocumentID string
	Score      float64
}

// VectorStore is the seam data-type projects submit chunks to and search
// against. Providers are created by name and kept pluggable so a real
// sqlite-vec or Qdrant-backed implementation can be
// substituted without touching the handler.
type VectorStore interface {
	Upsert(collection string, chunkID, documentID, content string) error
	Search(collection, query string, limit int) ([]VectorHit, error)
	Delete(collection, documentID string) error
}

// NewVectorStore constructs the VectorStore for a configured backend name.
// "sqlite_vec" and "qdrant" are the two recognized backends;
// both currently resolve to an in-process substring-ranked store, since a
// real embedding model is an external dependency beyond this module's
// scope — swap this constructor to wire an actual sqlite-vec extension or
// Qdrant client without changing callers.
func NewVectorStore(backend string) (VectorStore, error) {
	switch backend {
	case "sqlite_vec", "qdrant", "":
		return newMemoryVectorStore(), nil
	default:
		return nil, errors.NewConfigError(
			"Unknown vector store type",
			fmt.Sprintf("%q is not a recognized vector_store_type", backend),
			"Use \"sqlite_vec\" or \"qdrant\"",
			nil,
		)
	}
}

// memoryVectorStore ranks by token overlap instead of real embeddings; it
// exists so process_document/search_documents are fully exercisable without
// a live embedding model.
type memoryVectorStore struct {
	collections map[string]map[string]memoryEntry
}

type memoryEntry struct {
	documentID string
	content    string
}

func newMemoryVectorStore() *memoryVectorStore {
	return &memoryVectorStore{collections: map[string]map[string]memoryEntry{}}
}

func (s *memoryVectorStore) Upsert(collection, chunkID, documentID, content string) error {
	c, ok := s.collections[collection]
	if !ok {
		c = map[string]memoryEntry{}
		s.collections[collection] = c
	}
	c[chunkID] = memoryEntry{documentID: documentID, content: content}
	return nil
}

func (s *memoryVectorStore) Search(collection, query string, limit int) ([]VectorHit, error) {
	c := s.collections[collection]
	queryTokens := tokenize(query)

	var hits []VectorHit
	for chunkID, entry := range c {
		score := overlapScore(queryTokens, tokenize(entry.content))
		if score <= 0 {
			continue
		}
		hits = append(hits, VectorHit{ChunkID: chunkID, DocumentID: entry.documentID, Score: score})
	}
	sortHitsByScoreDesc(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *memoryVectorStore) Delete(collection, documentID string) error {
	c := s.collections[collection]
	for chunkID, entry := range c {
		if entry.documentID == documentID {
			delete(c, chunkID)
		}
	}
	return nil
}

func tokenize(s string) map[string]int {
	tokens := map[string]int{}
	word := make([]byte, 0, 16)
	flush := func() {
		if len(word) > 0 {
			tokens[toLowerASCII(string(word))]++
			word = word[:0]
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			word = append(word, c)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func overlapScore(a, b map[string]int) float64 {
	var score float64
	for tok, count := range a {
		if n, ok := b[tok]; ok {
			score += float64(count * n)
		}
	}
	return score
}

func sortHitsByScoreDesc(hits []VectorHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}
