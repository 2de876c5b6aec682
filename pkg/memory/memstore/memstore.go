// Package memstore provides a simple in-process implementation of
// memory.Store for local use and the memory demo. Retrieval is a linear scan
// with exact cosine distance, which is plenty for the few hundred memories a
// single user accumulates.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feralbyte/kindred/pkg/memory"
	"github.com/feralbyte/kindred/pkg/provider/embeddings"
)

// Store implements memory.Store entirely in process memory.
type Store struct {
	embedder embeddings.Provider

	mu      sync.RWMutex
	items   []memory.Item
	vectors [][]float32
}

// New creates an empty Store using embedder for both stored texts and
// queries.
func New(embedder embeddings.Provider) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memstore: embedder must not be nil")
	}
	return &Store{embedder: embedder}, nil
}

// Add implements memory.Store.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]string) (memory.Item, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return memory.Item{}, fmt.Errorf("memstore: embed: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	item := memory.Item{
		ID:        uuid.NewString(),
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.items = append(s.items, item)
	s.vectors = append(s.vectors, vec)
	s.mu.Unlock()
	return item, nil
}

// Query implements memory.Store.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]memory.Result, error) {
	if topK <= 0 {
		return []memory.Result{}, nil
	}
	qvec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("memstore: embed query: %w", err)
	}

	s.mu.RLock()
	results := make([]memory.Result, 0, len(s.items))
	for i, item := range s.items {
		results = append(results, memory.Result{
			Item:     item,
			Distance: cosineDistance(qvec, s.vectors[i]),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.vectors = append(s.vectors[:i], s.vectors[i+1:]...)
			return nil
		}
	}
	return nil
}

// Count implements memory.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// Close implements memory.Store.
func (s *Store) Close() error { return nil }

// cosineDistance returns 1 - cosine similarity of a and b. Mismatched or
// zero-magnitude vectors yield the maximum distance.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)
