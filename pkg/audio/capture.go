package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// defaultFrameQueueDepth bounds the capture frame channel. At 30 ms per
// frame this buffers roughly 1.5 s of audio before the drop-oldest policy
// kicks in.
const defaultFrameQueueDepth = 50

// MicSource captures mono float32 audio from the default input device and
// slices it into fixed-duration frames.
//
// The miniaudio data callback runs under realtime scheduling constraints, so
// it does nothing beyond slicing samples and enqueueing frames; when the
// frame channel is full the oldest frame is dropped rather than blocking the
// callback.
type MicSource struct {
	sampleRate int
	frameLen   int // samples per frame

	frames chan Frame

	mu       sync.Mutex
	running  bool
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	slicer   frameSlicer
	captured time.Duration
}

// MicOption configures a [MicSource].
type MicOption func(*MicSource)

// WithMicSampleRate overrides the capture sample rate. Default 16000 Hz.
func WithMicSampleRate(rate int) MicOption {
	return func(s *MicSource) { s.sampleRate = rate }
}

// WithFrameDuration overrides the frame duration. Default 30 ms.
func WithFrameDuration(d time.Duration) MicOption {
	return func(s *MicSource) {
		s.frameLen = int(int64(s.sampleRate) * int64(d) / int64(time.Second))
	}
}

// WithFrameQueueDepth overrides the bounded frame channel depth. Default 50.
func WithFrameQueueDepth(n int) MicOption {
	return func(s *MicSource) { s.frames = make(chan Frame, n) }
}

// NewMicSource creates a microphone source with the given options. The input
// device itself is not opened until [MicSource.Start].
func NewMicSource(opts ...MicOption) *MicSource {
	s := &MicSource{
		sampleRate: DefaultSampleRate,
		frames:     make(chan Frame, defaultFrameQueueDepth),
	}
	s.frameLen = int(int64(s.sampleRate) * int64(DefaultFrameDuration) / int64(time.Second))
	for _, o := range opts {
		o(s)
	}
	s.slicer = frameSlicer{size: s.frameLen}
	return s
}

// Frames implements [Source].
func (s *MicSource) Frames() <-chan Frame { return s.frames }

// Start opens the default capture device and begins delivering frames.
// Calling Start on a running source is a no-op.
func (s *MicSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init capture context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(s.sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			s.onCapture(input, frameCount)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audio: init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audio: start capture device: %w", err)
	}

	s.ctx = mctx
	s.device = device
	s.running = true
	slog.Debug("microphone capture started",
		"sample_rate", s.sampleRate, "frame_samples", s.frameLen)
	return nil
}

// Stop halts capture and releases the input device. Idempotent.
func (s *MicSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	s.device.Uninit()
	s.device = nil
	_ = s.ctx.Uninit()
	s.ctx.Free()
	s.ctx = nil
	s.slicer.reset()
	slog.Debug("microphone capture stopped")
	return nil
}

// onCapture is the realtime data callback: slice and enqueue, nothing else.
func (s *MicSource) onCapture(input []byte, frameCount uint32) {
	n := int(frameCount)
	if n == 0 || len(input) < n*4 {
		return
	}
	samples := make([]float32, n)
	for i := range n {
		bits := binary.LittleEndian.Uint32(input[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	s.slicer.push(samples, func(frame []float32) {
		f := Frame{
			Samples:    frame,
			SampleRate: s.sampleRate,
			Timestamp:  s.captured,
		}
		s.captured += f.Duration()
		enqueueDropOldest(s.frames, f)
	})
}

// enqueueDropOldest delivers f on ch without ever blocking: when the channel
// is full, the oldest buffered frame is discarded to make room. Protecting
// the realtime callback's timing matters more than a dropped frame.
func enqueueDropOldest(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// frameSlicer accumulates arbitrary-length sample bursts and emits
// fixed-size frames. Not safe for concurrent use; the capture callback is
// the only caller.
type frameSlicer struct {
	size int
	buf  []float32
}

// push appends samples and invokes emit once per complete frame. Each
// emitted slice is freshly allocated; the slicer never aliases it.
func (fs *frameSlicer) push(samples []float32, emit func([]float32)) {
	fs.buf = append(fs.buf, samples...)
	for len(fs.buf) >= fs.size {
		frame := make([]float32, fs.size)
		copy(frame, fs.buf[:fs.size])
		fs.buf = append(fs.buf[:0], fs.buf[fs.size:]...)
		emit(frame)
	}
}

func (fs *frameSlicer) reset() { fs.buf = fs.buf[:0] }
