// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A transcriber converts a complete utterance (a bounded buffer of PCM audio,
// already segmented by voice activity detection) into text. Transcription is
// batch-oriented rather than streaming: the caller hands over one utterance at
// a time and receives the full transcript, which keeps the adapter contract
// small and lets backends such as whisper.cpp run a single inference pass per
// utterance.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Transcriber converts recorded speech into text.
type Transcriber interface {
	// Transcribe runs speech recognition over the given utterance. The samples
	// are mono float32 PCM in [-1, 1] at the given sample rate. Returns the
	// recognised text, which may be empty if the audio contains no
	// intelligible speech.
	//
	// Transcribe blocks until inference completes or ctx is cancelled.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
