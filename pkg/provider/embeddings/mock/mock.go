// Package mock provides a test double for the embeddings package interfaces.
//
// Use Provider to return deterministic vectors and inspect the texts that
// were embedded. By default each text maps to a fixed-dimension vector
// derived from its content, so distinct texts produce distinct vectors.
package mock

import (
	"context"
	"sync"

	"github.com/feralbyte/kindred/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Dims is the vector dimension. Defaults to 8 when zero.
	Dims int

	// Vectors maps input text to a fixed result. Texts not present fall back
	// to a derived vector.
	Vectors map[string][]float32

	// EmbedErr, if non-nil, is returned by every Embed and EmbedBatch call.
	EmbedErr error

	// EmbedCalls records every text passed to Embed or EmbedBatch, in order.
	EmbedCalls []string
}

// Embed records the call and returns the configured or derived vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	return p.vectorFor(text), nil
}

// EmbedBatch records the calls and returns one vector per text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, texts...)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.vectorFor(text)
	}
	return out, nil
}

// Dimensions returns Dims, or 8 when unset.
func (p *Provider) Dimensions() int {
	if p.Dims == 0 {
		return 8
	}
	return p.Dims
}

// ModelID identifies the mock model.
func (p *Provider) ModelID() string { return "mock-embed" }

// vectorFor returns the configured vector for text, or derives one from the
// text's bytes so distinct texts yield distinct directions. Caller holds mu.
func (p *Provider) vectorFor(text string) []float32 {
	if v, ok := p.Vectors[text]; ok {
		cp := make([]float32, len(v))
		copy(cp, v)
		return cp
	}
	dims := p.Dims
	if dims == 0 {
		dims = 8
	}
	vec := make([]float32, dims)
	for i, b := range []byte(text) {
		vec[i%dims] += float32(b) / 255
	}
	return vec
}

// ResetCalls clears all recorded call history. Thread-safe.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)
