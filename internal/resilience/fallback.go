// Package resilience keeps the conversation loop alive when the reply model
// is missing or failing.
//
// Two pieces work together: [Echo] is an llm.Provider used when no model is
// configured at all, and [LLMFallback] wraps a configured provider so that
// runtime failures degrade to the same deterministic echo reply instead of
// killing the turn. Either way the user always hears something.
package resilience

import (
	"context"
	"fmt"

	"github.com/feralbyte/kindred/pkg/provider/llm"
)

// FallbackText is the deterministic reply used when no LLM is available. It
// echoes the user's words so the voice loop stays demonstrably alive.
func FallbackText(utterance string) string {
	return fmt.Sprintf("I heard you say: '%s'.", utterance)
}

// Echo implements llm.Provider without any model behind it. Complete always
// succeeds, replying with [FallbackText] of the last user message.
type Echo struct{}

// Complete implements llm.Provider.
func (Echo) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var utterance string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			utterance = req.Messages[i].Content
			break
		}
	}
	return &llm.CompletionResponse{Content: FallbackText(utterance)}, nil
}

// ModelID implements llm.Provider.
func (Echo) ModelID() string { return "echo" }

// Compile-time interface assertion.
var _ llm.Provider = Echo{}
