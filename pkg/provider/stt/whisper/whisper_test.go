package whisper

import "testing"

func TestNewRequiresModelPath(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\"): expected error, got nil")
	}
}
