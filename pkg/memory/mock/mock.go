// Package mock provides a test double for the memory package interfaces.
//
// Use Store to script retrieval results and inspect the texts that were
// stored or queried.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/feralbyte/kindred/pkg/memory"
)

// QueryCall records a single invocation of Store.Query.
type QueryCall struct {
	// Text is the query passed to Query.
	Text string

	// TopK is the limit passed to Query.
	TopK int
}

// AddCall records a single invocation of Store.Add.
type AddCall struct {
	// Text is the content passed to Add.
	Text string

	// Metadata is the metadata passed to Add.
	Metadata map[string]string
}

// Store is a mock implementation of memory.Store.
type Store struct {
	mu sync.Mutex

	// QueryResults is returned by every Query call, truncated to topK.
	QueryResults []memory.Result

	// AddErr, if non-nil, is returned by every Add call.
	AddErr error

	// QueryErr, if non-nil, is returned by every Query call.
	QueryErr error

	// AddCalls records every call to Add in order.
	AddCalls []AddCall

	// QueryCalls records every call to Query in order.
	QueryCalls []QueryCall

	// DeleteCalls records every ID passed to Delete.
	DeleteCalls []string

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	seq int
}

// Add records the call and returns a fabricated item with a sequential ID.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]string) (memory.Item, error) {
	if err := ctx.Err(); err != nil {
		return memory.Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AddCalls = append(s.AddCalls, AddCall{Text: text, Metadata: metadata})
	if s.AddErr != nil {
		return memory.Item{}, s.AddErr
	}
	s.seq++
	return memory.Item{ID: fmt.Sprintf("mem-%d", s.seq), Text: text, Metadata: metadata}, nil
}

// Query records the call and returns QueryResults truncated to topK.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]memory.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCalls = append(s.QueryCalls, QueryCall{Text: text, TopK: topK})
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	results := s.QueryResults
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	out := make([]memory.Result, len(results))
	copy(out, results)
	return out, nil
}

// Delete records the call.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls = append(s.DeleteCalls, id)
	return nil
}

// Count returns the number of recorded Add calls.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.AddCalls), nil
}

// Close records the call.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Adds returns a copy of the recorded Add calls. Thread-safe.
func (s *Store) Adds() []AddCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AddCall, len(s.AddCalls))
	copy(out, s.AddCalls)
	return out
}

// Queries returns a copy of the recorded Query calls. Thread-safe.
func (s *Store) Queries() []QueryCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueryCall, len(s.QueryCalls))
	copy(out, s.QueryCalls)
	return out
}

// ResetCalls clears all recorded call history. Thread-safe.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AddCalls = nil
	s.QueryCalls = nil
	s.DeleteCalls = nil
	s.CloseCallCount = 0
}

// Ensure Store implements memory.Store at compile time.
var _ memory.Store = (*Store)(nil)
