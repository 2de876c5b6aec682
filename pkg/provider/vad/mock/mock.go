// Package mock provides a test double for the vad package interfaces.
//
// Use Detector to script per-frame classifications and inspect the frames
// that were submitted.
//
// Example:
//
//	det := &mock.Detector{Results: []bool{true, true, false}}
//	speech, _ := det.Classify(frame)
package mock

import (
	"sync"

	"github.com/feralbyte/kindred/pkg/provider/vad"
)

// ClassifyCall records a single invocation of Detector.Classify.
type ClassifyCall struct {
	// Frame is a copy of the samples passed to Classify.
	Frame []float32
}

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Results is consumed one entry per Classify call. Once exhausted,
	// Classify returns Default.
	Results []bool

	// Default is returned by Classify after Results is exhausted.
	Default bool

	// ClassifyErr, if non-nil, is returned by every Classify call.
	ClassifyErr error

	// ClassifyCalls records every call to Classify in order.
	ClassifyCalls []ClassifyCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	next int
}

// Classify records the call and returns the next scripted result.
func (d *Detector) Classify(frame []float32) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]float32, len(frame))
	copy(cp, frame)
	d.ClassifyCalls = append(d.ClassifyCalls, ClassifyCall{Frame: cp})
	if d.ClassifyErr != nil {
		return false, d.ClassifyErr
	}
	if d.next < len(d.Results) {
		r := d.Results[d.next]
		d.next++
		return r, nil
	}
	return d.Default, nil
}

// Reset records the call by incrementing ResetCallCount.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCallCount++
}

// Calls returns a copy of the recorded Classify calls. Thread-safe.
func (d *Detector) Calls() []ClassifyCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ClassifyCall, len(d.ClassifyCalls))
	copy(out, d.ClassifyCalls)
	return out
}

// ResetCalls clears all recorded call history and rewinds the script.
// Thread-safe.
func (d *Detector) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ClassifyCalls = nil
	d.ResetCallCount = 0
	d.next = 0
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)
