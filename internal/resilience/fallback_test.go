package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/feralbyte/kindred/internal/resilience"
	"github.com/feralbyte/kindred/pkg/provider/llm"
	llmmock "github.com/feralbyte/kindred/pkg/provider/llm/mock"
)

func TestFallbackText(t *testing.T) {
	t.Parallel()

	got := resilience.FallbackText("hello there")
	want := "I heard you say: 'hello there'."
	if got != want {
		t.Errorf("FallbackText: got %q, want %q", got, want)
	}
}

func TestEchoRepliesWithLastUserMessage(t *testing.T) {
	t.Parallel()

	resp, err := resilience.Echo{}.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "second"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if want := resilience.FallbackText("second"); resp.Content != want {
		t.Errorf("Content: got %q, want %q", resp.Content, want)
	}
}

func TestLLMFallbackPassesThroughOnSuccess(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{Responses: []string{"real reply"}, Model: "test-model"}
	f := resilience.NewLLMFallback(primary)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "real reply" {
		t.Errorf("Content: got %q, want %q", resp.Content, "real reply")
	}
	if f.ModelID() != "test-model" {
		t.Errorf("ModelID: got %q, want %q", f.ModelID(), "test-model")
	}
}

func TestLLMFallbackDegradesToEcho(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	f := resilience.NewLLMFallback(primary)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "are you there?"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if want := resilience.FallbackText("are you there?"); resp.Content != want {
		t.Errorf("Content: got %q, want %q", resp.Content, want)
	}
}

func TestLLMFallbackPropagatesCancellation(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	f := resilience.NewLLMFallback(primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
