// Package energy implements a short-term RMS energy voice activity detector.
//
// It classifies a frame as speech when its root-mean-square amplitude exceeds
// a threshold derived from an aggressiveness level (0–3). Higher levels demand
// louder audio before flagging speech, trading missed quiet speech for fewer
// false positives from background noise. The detector is stateless apart from
// its threshold, so it adds no latency and needs no model files.
package energy

import (
	"fmt"
	"math"

	"github.com/feralbyte/kindred/pkg/provider/vad"
)

// MaxAggressiveness is the highest supported filtering level.
const MaxAggressiveness = 3

// thresholds maps aggressiveness 0–3 to an RMS amplitude floor. The values
// assume float32 PCM in [-1, 1]; level 2 sits comfortably above typical room
// noise while still catching conversational speech.
var thresholds = [MaxAggressiveness + 1]float64{0.006, 0.010, 0.015, 0.022}

// Detector is an RMS-threshold vad.Detector.
type Detector struct {
	threshold float64
}

// New creates a Detector with the given aggressiveness (0–3).
func New(aggressiveness int) (*Detector, error) {
	if aggressiveness < 0 || aggressiveness > MaxAggressiveness {
		return nil, fmt.Errorf("energy: aggressiveness %d out of range [0, %d]", aggressiveness, MaxAggressiveness)
	}
	return &Detector{threshold: thresholds[aggressiveness]}, nil
}

// Classify reports whether the frame's RMS amplitude exceeds the configured
// threshold. Empty frames are non-speech.
func (d *Detector) Classify(frame []float32) (bool, error) {
	if len(frame) == 0 {
		return false, nil
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	return rms >= d.threshold, nil
}

// Reset is a no-op; the detector carries no per-stream state.
func (d *Detector) Reset() {}

// Threshold returns the RMS floor the detector applies. Exposed for logging.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)
