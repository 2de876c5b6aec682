// Package audio provides microphone capture, speaker playback, and PCM
// utilities for the Kindred voice pipeline.
//
// The two primary abstractions are:
//
//   - [Source] — continuously captures microphone audio and delivers it as
//     fixed-duration [Frame] values on a bounded channel.
//   - [Player] — renders a [PlaybackRequest] through an [OutputDevice],
//     interruptible mid-playback.
//
// Concrete implementations are backed by miniaudio via the malgo bindings;
// the interfaces exist so the segmenter and call session can be driven by
// mocks in tests.
package audio

import "time"

// DefaultSampleRate is the capture sample rate in Hz. 16 kHz mono is what
// the transcription model expects.
const DefaultSampleRate = 16000

// DefaultFrameDuration is the length of a single capture frame. 30 ms at
// 16 kHz yields 480 samples per frame.
const DefaultFrameDuration = 30 * time.Millisecond

// Frame is a fixed-duration slice of mono PCM samples flowing from capture
// into the segmenter. Frames are transient; they are never persisted.
type Frame struct {
	// Samples holds mono float32 PCM in the range [-1, 1].
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// PlaybackRequest carries a complete synthesized utterance to the [Player].
// Ownership of Samples transfers to the player for the duration of playback;
// superseded requests are discarded, never queued.
type PlaybackRequest struct {
	// Samples holds mono float32 PCM in the range [-1, 1].
	Samples []float32

	// SampleRate in Hz.
	SampleRate int
}

// Source is a continuous producer of capture frames.
//
// Implementations must deliver frames in capture order on the channel
// returned by Frames and must never block their underlying realtime audio
// callback: when the consumer falls behind, the oldest buffered frame is
// dropped in favour of the newest.
type Source interface {
	// Start begins capture. Calling Start on a running source is a no-op.
	Start() error

	// Stop halts capture and releases the input device. Idempotent.
	// The frames channel is not closed; it simply stops receiving values.
	Stop() error

	// Frames returns the channel on which captured frames are delivered.
	// The same channel is returned for the lifetime of the source.
	Frames() <-chan Frame
}

// OutputDevice abstracts a speaker device that consumes blocks of float32
// PCM. It is an interface so playback semantics can be tested without audio
// hardware.
//
// An OutputDevice is owned by exactly one [Player]; implementations need not
// be safe for concurrent Write calls.
type OutputDevice interface {
	// Start opens the device for rendering at the given sample rate.
	// Starting an already-started device at a different rate reconfigures it.
	Start(sampleRate int) error

	// Write queues one block of samples for rendering and blocks until the
	// device has accepted it. Write returns an error after Abort is called.
	Write(block []float32) error

	// Abort halts rendering immediately, discarding queued samples, and
	// unblocks any in-flight Write. Idempotent.
	Abort() error

	// Close releases the device. After Close the device cannot be restarted.
	Close() error
}
