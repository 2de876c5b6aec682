// Package mock provides a test double for the stt package interfaces.
//
// Use Transcriber to script transcription results and inspect the utterances
// that were submitted.
package mock

import (
	"context"
	"sync"

	"github.com/feralbyte/kindred/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the audio passed to Transcribe.
	Samples []float32

	// SampleRate is the rate passed to Transcribe.
	SampleRate int
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Results is consumed one entry per Transcribe call. Once exhausted,
	// Transcribe returns Default.
	Results []string

	// Default is returned by Transcribe after Results is exhausted.
	Default string

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	next int
}

// Transcribe records the call and returns the next scripted result.
func (m *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Samples: cp, SampleRate: sampleRate})
	if m.TranscribeErr != nil {
		return "", m.TranscribeErr
	}
	if m.next < len(m.Results) {
		r := m.Results[m.next]
		m.next++
		return r, nil
	}
	return m.Default, nil
}

// Calls returns a copy of the recorded Transcribe calls. Thread-safe.
func (m *Transcriber) Calls() []TranscribeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TranscribeCall, len(m.TranscribeCalls))
	copy(out, m.TranscribeCalls)
	return out
}

// ResetCalls clears all recorded call history and rewinds the script.
// Thread-safe.
func (m *Transcriber) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = nil
	m.next = 0
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
