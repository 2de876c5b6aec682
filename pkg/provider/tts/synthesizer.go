// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// A synthesizer wraps a speech synthesis service (e.g., a local Coqui XTTS
// server) and converts assistant reply text into PCM audio ready for playback.
// Synthesis is per-reply rather than streaming: the orchestrator hands over
// one reply at a time and receives the full rendered audio, which the playback
// sink can then interrupt at block granularity.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"time"
)

// ErrSpeakerRefMissing is returned when a synthesis request names a speaker
// reference recording that does not exist on disk. Voice-cloning backends
// need the reference to condition the synthesised voice.
var ErrSpeakerRefMissing = errors.New("tts: speaker reference recording not found")

// SynthesisRequest describes one utterance to synthesise.
type SynthesisRequest struct {
	// Text is the content to speak. Must not be empty.
	Text string

	// SpeakerWav is the path to a reference recording for voice cloning.
	// Backends that do not clone voices may ignore it.
	SpeakerWav string

	// Language is the BCP-47 language tag for synthesis (e.g., "en").
	// An empty string uses the synthesizer default.
	Language string

	// SampleRate is the desired output rate in Hz. Zero means the backend's
	// native rate; otherwise the result is resampled.
	SampleRate int
}

// SynthesisResult holds the rendered audio for one utterance.
type SynthesisResult struct {
	// Samples is the mono float32 PCM of the spoken text.
	Samples []float32

	// SampleRate is the rate of Samples in Hz.
	SampleRate int

	// Duration is the playback length of Samples.
	Duration time.Duration
}

// Synthesizer converts text into speech audio.
type Synthesizer interface {
	// Synthesize renders req.Text as audio. Blocks until synthesis completes
	// or ctx is cancelled. Returns ErrSpeakerRefMissing (possibly wrapped)
	// when the requested speaker reference cannot be found.
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}
