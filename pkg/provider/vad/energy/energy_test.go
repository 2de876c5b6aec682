package energy_test

import (
	"math"
	"testing"

	"github.com/feralbyte/kindred/pkg/provider/vad/energy"
)

// sine generates n samples of a sine wave with the given peak amplitude.
func sine(n int, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*float64(i)/64))
	}
	return out
}

func TestClassifySpeechVsSilence(t *testing.T) {
	t.Parallel()

	det, err := energy.New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loud := sine(480, 0.3)
	speech, err := det.Classify(loud)
	if err != nil {
		t.Fatalf("Classify(loud): %v", err)
	}
	if !speech {
		t.Error("loud frame classified as non-speech")
	}

	quiet := sine(480, 0.005)
	speech, err = det.Classify(quiet)
	if err != nil {
		t.Fatalf("Classify(quiet): %v", err)
	}
	if speech {
		t.Error("near-silent frame classified as speech")
	}
}

func TestEmptyFrameIsNonSpeech(t *testing.T) {
	t.Parallel()

	det, err := energy.New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	speech, err := det.Classify(nil)
	if err != nil {
		t.Fatalf("Classify(nil): %v", err)
	}
	if speech {
		t.Error("empty frame classified as speech")
	}
}

func TestAggressivenessOrdering(t *testing.T) {
	t.Parallel()

	// A frame loud enough for the most permissive level but too quiet for the
	// strictest. RMS of a sine is amplitude/sqrt(2); 0.02 peak gives ~0.014.
	frame := sine(480, 0.02)

	lenient, err := energy.New(0)
	if err != nil {
		t.Fatalf("New(0): %v", err)
	}
	strict, err := energy.New(3)
	if err != nil {
		t.Fatalf("New(3): %v", err)
	}

	speech, _ := lenient.Classify(frame)
	if !speech {
		t.Error("lenient detector rejected moderate frame")
	}
	speech, _ = strict.Classify(frame)
	if speech {
		t.Error("strict detector accepted moderate frame")
	}
}

func TestAggressivenessOutOfRange(t *testing.T) {
	t.Parallel()

	for _, level := range []int{-1, 4, 100} {
		if _, err := energy.New(level); err == nil {
			t.Errorf("New(%d): expected error, got nil", level)
		}
	}
}
