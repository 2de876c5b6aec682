// Package mock provides a test double for the tts package interfaces.
//
// Use Synthesizer to script synthesis results and inspect the requests that
// were submitted.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/feralbyte/kindred/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesizer.Synthesize.
type SynthesizeCall struct {
	// Req is the request passed to Synthesize.
	Req tts.SynthesisRequest
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Result is returned by every Synthesize call. If nil, Synthesize
	// fabricates a short silent result at 16 kHz.
	Result *tts.SynthesisResult

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// Delay, if non-zero, makes Synthesize sleep before returning, to
	// simulate inference latency. Cancelling ctx cuts the sleep short.
	Delay time.Duration

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns Result, SynthesizeErr.
func (m *Synthesizer) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	m.mu.Lock()
	m.SynthesizeCalls = append(m.SynthesizeCalls, SynthesizeCall{Req: req})
	delay := m.Delay
	err := m.SynthesizeErr
	result := m.Result
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &tts.SynthesisResult{
			Samples:    make([]float32, 1600),
			SampleRate: 16000,
			Duration:   100 * time.Millisecond,
		}
	}
	return result, nil
}

// Calls returns a copy of the recorded Synthesize calls. Thread-safe.
func (m *Synthesizer) Calls() []SynthesizeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SynthesizeCall, len(m.SynthesizeCalls))
	copy(out, m.SynthesizeCalls)
	return out
}

// ResetCalls clears all recorded call history. Thread-safe.
func (m *Synthesizer) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SynthesizeCalls = nil
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
