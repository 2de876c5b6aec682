package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrDeviceAborted is returned by [OutputDevice.Write] once Abort has been
// called, so a rendering loop blocked mid-write unwinds promptly.
var ErrDeviceAborted = errors.New("audio: output device aborted")

// ErrDeviceClosed is returned when the device is used after Close.
var ErrDeviceClosed = errors.New("audio: output device closed")

// blockQueueDepth bounds the pending-block queue between Write and the
// device callback. Small on purpose: a short queue keeps Abort latency low.
const blockQueueDepth = 4

// SpeakerDevice renders mono float32 PCM through the default output device.
// It implements [OutputDevice].
//
// The miniaudio playback callback pulls samples from a small bounded queue
// fed by Write; Abort stops the device and flushes the queue so no further
// audio is emitted.
type SpeakerDevice struct {
	mu         sync.Mutex
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	closed     bool

	blocks  chan []float32
	aborted chan struct{}
	pending []float32 // remainder of the block currently being consumed
	pmu     sync.Mutex
}

// NewSpeakerDevice creates a speaker device. The underlying output device is
// opened lazily on the first [SpeakerDevice.Start].
func NewSpeakerDevice() *SpeakerDevice {
	return &SpeakerDevice{
		blocks:  make(chan []float32, blockQueueDepth),
		aborted: make(chan struct{}),
	}
}

// Start implements [OutputDevice]. Starting at a different sample rate than
// the current one tears the device down and reopens it.
func (d *SpeakerDevice) Start(sampleRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	if d.device != nil && d.sampleRate == sampleRate {
		d.rearmLocked()
		return d.device.Start()
	}
	d.teardownLocked()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio: init playback context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			d.fill(output, frameCount)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audio: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audio: start playback device: %w", err)
	}

	d.ctx = mctx
	d.device = device
	d.sampleRate = sampleRate
	d.rearmLocked()
	return nil
}

// Write implements [OutputDevice]. It blocks until the block is queued or
// the device is aborted.
func (d *SpeakerDevice) Write(block []float32) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	blocks, aborted := d.blocks, d.aborted
	d.mu.Unlock()

	select {
	case <-aborted:
		return ErrDeviceAborted
	case blocks <- block:
		return nil
	}
}

// Abort implements [OutputDevice]. It stops the device mid-block, discards
// queued samples, and unblocks in-flight Write calls. Idempotent.
func (d *SpeakerDevice) Abort() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.aborted:
		return nil // already aborted
	default:
	}
	close(d.aborted)
	d.drainLocked()
	if d.device != nil {
		// Stop mid-block; a stop error here is not actionable.
		_ = d.device.Stop()
	}
	return nil
}

// Close implements [OutputDevice].
func (d *SpeakerDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	select {
	case <-d.aborted:
	default:
		close(d.aborted)
	}
	d.drainLocked()
	d.teardownLocked()
	return nil
}

// fill is the playback data callback: copy queued samples into the device
// buffer, zero-filling whatever is left when the queue runs dry.
func (d *SpeakerDevice) fill(output []byte, frameCount uint32) {
	need := int(frameCount)
	written := 0
	d.pmu.Lock()
	for written < need {
		if len(d.pending) == 0 {
			select {
			case block := <-d.blocks:
				d.pending = block
				continue
			default:
			}
			break
		}
		n := min(need-written, len(d.pending))
		for i := range n {
			bits := math.Float32bits(d.pending[i])
			binary.LittleEndian.PutUint32(output[(written+i)*4:], bits)
		}
		d.pending = d.pending[n:]
		written += n
	}
	d.pmu.Unlock()
	for i := written; i < need; i++ {
		binary.LittleEndian.PutUint32(output[i*4:], 0)
	}
}

// rearmLocked resets the abort signal and queue for a fresh render.
func (d *SpeakerDevice) rearmLocked() {
	select {
	case <-d.aborted:
		d.aborted = make(chan struct{})
	default:
	}
	d.drainLocked()
}

// drainLocked discards all queued blocks and the in-flight remainder.
func (d *SpeakerDevice) drainLocked() {
	for {
		select {
		case <-d.blocks:
		default:
			d.pmu.Lock()
			d.pending = nil
			d.pmu.Unlock()
			return
		}
	}
}

// teardownLocked releases the device and context if open.
func (d *SpeakerDevice) teardownLocked() {
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	d.sampleRate = 0
}
