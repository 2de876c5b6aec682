package anyllm

import (
	"testing"

	"github.com/feralbyte/kindred/pkg/provider/llm"
)

// TestNew_Validation checks constructor argument validation.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "llama3.1:8b"); err == nil {
		t.Error("expected error for empty providerName")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("carrier-pigeon", "llama3.1:8b"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

// TestBuildParams checks request conversion into any-llm-go params.
func TestBuildParams(t *testing.T) {
	p, err := NewOllama("llama3.1:8b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are helpful.",
		Messages: []llm.Message{
			{Role: "user", Content: "Hello!"},
			{Role: "assistant", Content: "Hi!"},
		},
		Temperature: 0.7,
		MaxTokens:   128,
	})

	if params.Model != "llama3.1:8b" {
		t.Errorf("expected model llama3.1:8b, got %s", params.Model)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("expected 3 messages (system + 2), got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" || params.Messages[0].Content != "You are helpful." {
		t.Errorf("unexpected system message: %+v", params.Messages[0])
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Errorf("expected max tokens 128, got %v", params.MaxTokens)
	}
}
