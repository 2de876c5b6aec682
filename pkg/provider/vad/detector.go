// Package vad defines the Detector interface for voice activity detection
// backends.
//
// A detector classifies individual audio frames as speech or non-speech. It is
// the gate in front of the speech segmenter: only frames a detector flags as
// voiced contribute to an utterance, and trailing non-speech frames end it.
//
// Detection is synchronous by design: Classify returns immediately with a
// per-frame verdict, making it suitable for the low-latency capture loop that
// feeds it. A Detector may carry smoothing state between frames; it is not
// required to be safe for concurrent use unless the implementation documents
// otherwise.
package vad

// Detector classifies audio frames as speech or non-speech.
type Detector interface {
	// Classify reports whether the given frame contains speech. The frame is
	// mono float32 PCM in the range [-1, 1] at the sample rate the detector
	// was configured for. Returns an error if the frame cannot be analysed;
	// callers should treat an errored frame as non-speech.
	//
	// Classify is called once per captured frame and must not block.
	Classify(frame []float32) (bool, error)

	// Reset clears any accumulated detection state so the detector can be
	// reused for a fresh audio stream.
	Reset()
}
