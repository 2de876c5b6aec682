// Package segment turns the continuous microphone frame stream into discrete
// utterances.
//
// A Segmenter consumes frames from an audio.Source, gates them through a
// vad.Detector, and accumulates voiced audio until the speaker pauses. Once
// trailing silence exceeds the configured timeout the buffered audio is
// transcribed and emitted as an utterance event. Speech onset is emitted
// immediately as its own event so the caller can interrupt assistant
// playback the moment the user starts talking.
package segment

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/feralbyte/kindred/internal/observe"
	"github.com/feralbyte/kindred/pkg/audio"
	"github.com/feralbyte/kindred/pkg/provider/stt"
	"github.com/feralbyte/kindred/pkg/provider/vad"
)

const (
	// defaultSilenceTimeout is how much trailing non-speech ends an utterance.
	defaultSilenceTimeout = 700 * time.Millisecond

	// defaultPollInterval bounds how stale a pause decision can be when no
	// new frames arrive (e.g., the capture device stalls mid-pause).
	defaultPollInterval = 100 * time.Millisecond

	// defaultEventBuffer is the capacity of the event channel.
	defaultEventBuffer = 16
)

// EventType enumerates segmenter events.
type EventType int

const (
	// EventSpeechStart fires on the first voiced frame of a new utterance.
	EventSpeechStart EventType = iota

	// EventUtterance fires when an utterance has been finalised and
	// transcribed to non-empty text.
	EventUtterance
)

// Event is a single segmenter output. Events are delivered in FIFO order.
type Event struct {
	Type EventType

	// Text is the transcript. Set only for EventUtterance.
	Text string

	// AudioDuration is the length of the captured utterance audio,
	// including trailing silence. Set only for EventUtterance.
	AudioDuration time.Duration
}

// Segmenter drives the capture → VAD → transcription front half of a call.
// Create with New, then Start; consume Events until Stop.
type Segmenter struct {
	src      audio.Source
	detector vad.Detector
	scriber  stt.Transcriber

	silenceTimeout time.Duration
	pollInterval   time.Duration
	metrics        *observe.Metrics
	logger         *slog.Logger

	events chan Event

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option is a functional option for Segmenter.
type Option func(*Segmenter)

// WithSilenceTimeout overrides the trailing-silence duration that finalises
// an utterance. Defaults to 700ms.
func WithSilenceTimeout(d time.Duration) Option {
	return func(s *Segmenter) { s.silenceTimeout = d }
}

// WithPollInterval overrides how often the pause check runs in the absence
// of new frames. Defaults to 100ms.
func WithPollInterval(d time.Duration) Option {
	return func(s *Segmenter) { s.pollInterval = d }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = l }
}

// New creates a Segmenter reading from src, gating with detector, and
// transcribing finalised utterances with scriber.
func New(src audio.Source, detector vad.Detector, scriber stt.Transcriber, opts ...Option) *Segmenter {
	s := &Segmenter{
		src:            src,
		detector:       detector,
		scriber:        scriber,
		silenceTimeout: defaultSilenceTimeout,
		pollInterval:   defaultPollInterval,
		events:         make(chan Event, defaultEventBuffer),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Events returns the event channel. It is closed after Stop returns or the
// source's frame channel closes.
func (s *Segmenter) Events() <-chan Event { return s.events }

// Start begins capture and segmentation. Calling Start on a running
// Segmenter is a no-op.
func (s *Segmenter) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.src.Start(); err != nil {
		return err
	}
	s.started = true
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run(ctx, s.done)
	return nil
}

// Stop halts capture, finalises any buffered speech, and closes the event
// channel. Safe to call multiple times and before Start.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	done := s.done
	s.mu.Unlock()

	if err := s.src.Stop(); err != nil {
		s.logger.Warn("stopping capture source failed", "error", err)
	}
	close(done)
	s.wg.Wait()
}

// segState tracks the per-utterance accumulation inside run.
type segState struct {
	buf         []float32
	sampleRate  int
	voiced      bool
	lastVoiceAt time.Time
}

// run is the single goroutine that owns all segmentation state.
func (s *Segmenter) run(ctx context.Context, done chan struct{}) {
	defer s.wg.Done()
	defer close(s.events)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var st segState

	for {
		select {
		case <-ctx.Done():
			s.finalize(ctx, &st, done)
			return

		case <-done:
			s.finalize(ctx, &st, done)
			return

		case f, ok := <-s.src.Frames():
			if !ok {
				s.finalize(ctx, &st, done)
				return
			}
			s.processFrame(ctx, &st, f, done)

		case <-ticker.C:
			if st.voiced && time.Since(st.lastVoiceAt) >= s.silenceTimeout {
				s.finalize(ctx, &st, done)
			}
		}
	}
}

// processFrame classifies one frame and updates the accumulation state.
func (s *Segmenter) processFrame(ctx context.Context, st *segState, f audio.Frame, done chan struct{}) {
	speech, err := s.detector.Classify(f.Samples)
	if err != nil {
		// An errored frame counts as non-speech; a pause can still end the
		// utterance via the accumulated silence.
		s.logger.Debug("frame classification failed", "error", err)
		speech = false
	}

	if speech {
		if !st.voiced {
			st.voiced = true
			st.buf = st.buf[:0]
			st.sampleRate = f.SampleRate
			s.emit(Event{Type: EventSpeechStart}, done)
		}
		st.lastVoiceAt = time.Now()
		st.buf = append(st.buf, f.Samples...)
		return
	}

	if st.voiced && time.Since(st.lastVoiceAt) >= s.silenceTimeout {
		// Silence frames are never buffered; the blob is speech only.
		s.finalize(ctx, st, done)
	}
}

// finalize transcribes the accumulated buffer, emits an utterance event for
// non-empty transcripts, and resets state for the next utterance.
func (s *Segmenter) finalize(ctx context.Context, st *segState, done chan struct{}) {
	if !st.voiced || len(st.buf) == 0 {
		st.voiced = false
		st.buf = st.buf[:0]
		return
	}

	samples := make([]float32, len(st.buf))
	copy(samples, st.buf)
	rate := st.sampleRate
	st.voiced = false
	st.buf = st.buf[:0]
	s.detector.Reset()

	start := time.Now()
	text, err := s.scriber.Transcribe(ctx, samples, rate)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		// A failed transcription loses this utterance but never the call.
		s.logger.Warn("transcription failed", "error", err)
		s.metrics.RecordProviderError(ctx, "stt")
		s.metrics.RecordUtterance(ctx, "error")
		return
	}
	// Whisper likes to pad transcripts with a leading space.
	text = strings.TrimSpace(text)
	if text == "" {
		s.metrics.RecordUtterance(ctx, "empty")
		return
	}

	s.metrics.RecordUtterance(ctx, "transcribed")
	s.emit(Event{
		Type:          EventUtterance,
		Text:          text,
		AudioDuration: time.Duration(len(samples)) * time.Second / time.Duration(max(rate, 1)),
	}, done)
}

// emit delivers ev without blocking shutdown. A final utterance flushed
// during Stop still lands in the buffered channel when there is room.
func (s *Segmenter) emit(ev Event, done chan struct{}) {
	select {
	case s.events <- ev:
	default:
		select {
		case s.events <- ev:
		case <-done:
		}
	}
}
