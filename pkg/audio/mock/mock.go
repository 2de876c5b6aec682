// Package mock provides test doubles for the audio package interfaces.
//
// Use Source to feed scripted frames into the segmenter and Device to verify
// playback semantics (writes, aborts, stop ordering) without audio hardware.
package mock

import (
	"sync"
	"time"

	"github.com/feralbyte/kindred/pkg/audio"
)

// Source is a mock implementation of [audio.Source]. Tests push frames with
// [Source.Push]; the segmenter consumes them from Frames.
type Source struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StartCallCount and StopCallCount record lifecycle calls.
	StartCallCount int
	StopCallCount  int

	frames chan audio.Frame
}

// NewSource creates a mock source with a frame buffer of depth n.
func NewSource(n int) *Source {
	return &Source{frames: make(chan audio.Frame, n)}
}

// Push delivers a frame to the consumer. It blocks if the buffer is full.
func (s *Source) Push(f audio.Frame) { s.frames <- f }

// Start records the call and returns StartErr.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCallCount++
	return s.StartErr
}

// Stop records the call.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCallCount++
	return nil
}

// Frames returns the frame channel fed by Push.
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// CloseFrames closes the frame channel, signalling end of capture to the
// consumer. Push must not be called afterwards.
func (s *Source) CloseFrames() { close(s.frames) }

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// Device is a mock implementation of [audio.OutputDevice]. It records every
// written block and can simulate a slow device via WriteDelay so tests can
// exercise mid-playback cancellation.
type Device struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// WriteDelay, when non-zero, is slept per Write before the block is
	// accepted, unless the device is aborted first.
	WriteDelay time.Duration

	// StartCalls records the sample rate of every Start call.
	StartCalls []int

	// Written records every block accepted by Write, in order.
	Written [][]float32

	// AbortCallCount and CloseCallCount record lifecycle calls.
	AbortCallCount int
	CloseCallCount int

	aborted chan struct{}
}

// NewDevice creates a mock output device.
func NewDevice() *Device {
	return &Device{aborted: make(chan struct{})}
}

// Start records the call, clears the abort state, and returns StartErr.
func (d *Device) Start(sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StartCalls = append(d.StartCalls, sampleRate)
	select {
	case <-d.aborted:
		d.aborted = make(chan struct{})
	default:
	}
	return d.StartErr
}

// Write records the block after an optional delay. Returns
// [audio.ErrDeviceAborted] if Abort is called first.
func (d *Device) Write(block []float32) error {
	d.mu.Lock()
	aborted := d.aborted
	delay := d.WriteDelay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-aborted:
			return audio.ErrDeviceAborted
		case <-time.After(delay):
		}
	}
	select {
	case <-aborted:
		return audio.ErrDeviceAborted
	default:
	}

	cp := make([]float32, len(block))
	copy(cp, block)
	d.mu.Lock()
	d.Written = append(d.Written, cp)
	d.mu.Unlock()
	return nil
}

// Abort records the call and unblocks in-flight writes.
func (d *Device) Abort() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AbortCallCount++
	select {
	case <-d.aborted:
	default:
		close(d.aborted)
	}
	return nil
}

// Close records the call.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return nil
}

// AbortCount returns the number of Abort calls so far. Thread-safe.
func (d *Device) AbortCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.AbortCallCount
}

// WrittenSamples returns all written samples concatenated, for asserting on
// total rendered audio.
func (d *Device) WrittenSamples() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []float32
	for _, b := range d.Written {
		out = append(out, b...)
	}
	return out
}

// Ensure Device implements audio.OutputDevice at compile time.
var _ audio.OutputDevice = (*Device)(nil)
