// Package mock provides a test double for the llm package interfaces.
//
// Use Provider to script completion responses and inspect the requests that
// were submitted.
//
// Example:
//
//	p := &mock.Provider{Responses: []string{"Hello!"}}
//	resp, _ := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/feralbyte/kindred/pkg/provider/llm"
)

// CompleteCall records a single invocation of Provider.Complete.
type CompleteCall struct {
	// Req is the request passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Responses is consumed one entry per Complete call. Once exhausted,
	// Complete returns Default.
	Responses []string

	// Default is returned by Complete after Responses is exhausted.
	Default string

	// Model is returned by ModelID. Defaults to "mock" when empty.
	Model string

	// CompleteErr, if non-nil, is returned by every Complete call.
	CompleteErr error

	// CompleteCalls records every call to Complete in order.
	CompleteCalls []CompleteCall

	next int
}

// Complete records the call and returns the next scripted response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Req: req})
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	content := p.Default
	if p.next < len(p.Responses) {
		content = p.Responses[p.next]
		p.next++
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// ModelID returns Model, or "mock" when unset.
func (p *Provider) ModelID() string {
	if p.Model == "" {
		return "mock"
	}
	return p.Model
}

// Calls returns a copy of the recorded Complete calls. Thread-safe.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

// ResetCalls clears all recorded call history and rewinds the script.
// Thread-safe.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.next = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
