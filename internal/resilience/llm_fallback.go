package resilience

import (
	"context"
	"log/slog"

	"github.com/feralbyte/kindred/pkg/provider/llm"
)

// LLMFallback implements llm.Provider by delegating to a primary backend and
// degrading to [Echo] when the primary fails. Context cancellation is not
// treated as a failure: a cancelled turn propagates the error so the caller
// can abandon it.
type LLMFallback struct {
	primary llm.Provider
	echo    Echo
}

// NewLLMFallback wraps primary with echo degradation.
func NewLLMFallback(primary llm.Provider) *LLMFallback {
	return &LLMFallback{primary: primary}
}

// Complete sends the request to the primary provider. On failure it logs the
// error and returns the echo reply instead.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := f.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	slog.Warn("reply model failed, falling back to echo",
		"model", f.primary.ModelID(),
		"error", err,
	)
	return f.echo.Complete(ctx, req)
}

// ModelID reports the primary's model identifier.
func (f *LLMFallback) ModelID() string { return f.primary.ModelID() }

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)
