package audio

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// playbackBlockSize is the number of samples written to the device per
// block. Small enough that a stop signal is observed within a few
// milliseconds of audio.
const playbackBlockSize = 1024

// defaultStopWait bounds how long [Player.Stop] waits for the rendering
// goroutine to unwind after the device has been aborted.
const defaultStopWait = time.Second

// Player renders one [PlaybackRequest] at a time through an [OutputDevice].
//
// At most one request is actively rendering at any instant: Play fully stops
// the previous render before the new one begins, and Stop guarantees that no
// further audio from the stopped request reaches the device once it returns.
// All methods are safe for concurrent use.
type Player struct {
	dev        OutputDevice
	stopWait   time.Duration
	onRendered func(time.Duration)

	// startMu serializes Play calls so the stop of the previous render and
	// the install of the next one are a single atomic step.
	startMu sync.Mutex

	mu     sync.Mutex
	cancel chan struct{}
	done   chan struct{}
}

// PlayerOption configures a [Player].
type PlayerOption func(*Player)

// WithStopWait overrides the bounded wait applied when stopping an active
// render. Default 1 s.
func WithStopWait(d time.Duration) PlayerOption {
	return func(p *Player) { p.stopWait = d }
}

// WithRenderObserver installs fn to be called with the wall-clock duration of
// each render as it ends, completed or cut short. fn runs on the render
// goroutine and must not block.
func WithRenderObserver(fn func(time.Duration)) PlayerOption {
	return func(p *Player) { p.onRendered = fn }
}

// NewPlayer creates a Player that renders through dev. The player owns the
// device; no other component may write to it.
func NewPlayer(dev OutputDevice, opts ...PlayerOption) *Player {
	p := &Player{dev: dev, stopWait: defaultStopWait}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Play stops any active render, then begins asynchronous rendering of req.
// It returns once rendering has started; audio continues in the background
// until the request finishes or [Player.Stop] is called.
func (p *Player) Play(req PlaybackRequest) error {
	if len(req.Samples) == 0 {
		return nil
	}
	if req.SampleRate <= 0 {
		return errors.New("audio: playback request has no sample rate")
	}

	p.startMu.Lock()
	defer p.startMu.Unlock()

	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.dev.Start(req.SampleRate); err != nil {
		return err
	}

	cancel := make(chan struct{})
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.render(req, cancel, done)
	return nil
}

// Stop halts the active render, if any, and reports whether one was active.
// After Stop returns no further audio from the stopped request will be
// emitted. Calling Stop with nothing playing is a no-op.
func (p *Player) Stop() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return false
	}

	select {
	case <-done:
		// Render already finished on its own.
		return false
	default:
	}

	close(cancel)
	// Abort the device so a Write blocked on a full queue unwinds now
	// rather than at the next block boundary. Abort errors are not
	// actionable during cancellation.
	_ = p.dev.Abort()

	select {
	case <-done:
	case <-time.After(p.stopWait):
		slog.Warn("playback did not stop within bounded wait", "wait", p.stopWait)
	}
	return true
}

// render writes req in fixed-size blocks until done or cancelled.
func (p *Player) render(req PlaybackRequest, cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if p.onRendered != nil {
		start := time.Now()
		defer func() { p.onRendered(time.Since(start)) }()
	}

	for idx := 0; idx < len(req.Samples); idx += playbackBlockSize {
		select {
		case <-cancel:
			return
		default:
		}

		end := min(idx+playbackBlockSize, len(req.Samples))
		if err := p.dev.Write(req.Samples[idx:end]); err != nil {
			if !errors.Is(err, ErrDeviceAborted) {
				slog.Warn("playback write failed", "err", err)
			}
			return
		}
	}
}
