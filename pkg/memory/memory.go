// Package memory defines the Store interface for long-term semantic memory.
//
// A store holds short text memories alongside their embedding vectors and
// retrieves the ones most similar to a query. The call orchestrator uses it
// to personalise replies: each transcribed utterance is both added as a new
// memory and used as a retrieval query for the reply prompt.
//
// Implementations own the embedding step: callers hand over plain text and
// never see vectors. All implementations must be safe for concurrent use.
package memory

import (
	"context"
	"time"
)

// Item is a single stored memory.
type Item struct {
	// ID uniquely identifies the memory.
	ID string

	// Text is the memory content.
	Text string

	// Metadata holds free-form attributes (e.g., source, speaker).
	Metadata map[string]string

	// CreatedAt is when the memory was stored.
	CreatedAt time.Time
}

// Result is one retrieval hit.
type Result struct {
	Item Item

	// Distance is the cosine distance between the query and the item, in
	// [0, 2]. Lower is more similar.
	Distance float64
}

// Store is the abstraction over any semantic memory backend.
type Store interface {
	// Add embeds text and stores it as a new memory with a generated ID.
	// Returns the stored item.
	Add(ctx context.Context, text string, metadata map[string]string) (Item, error)

	// Query embeds the query text and returns up to topK stored memories
	// ordered by ascending cosine distance (most similar first). An empty
	// store yields an empty slice, not an error.
	Query(ctx context.Context, text string, topK int) ([]Result, error)

	// Delete removes the memory with the given ID. Deleting an unknown ID is
	// not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored memories.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
