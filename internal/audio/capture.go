package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/petems/live-tray/internal/pcm"
	"github.com/rs/zerolog"
)

// CaptureState is the lifecycle state of the capture pipeline.
type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureRequesting
	CaptureCapturing
	CaptureError
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureRequesting:
		return "requesting"
	case CaptureCapturing:
		return "capturing"
	case CaptureError:
		return "error"
	default:
		return "unknown"
	}
}

// Sink receives encoded outbound frames.
type Sink interface {
	Send(blob pcm.Blob) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(blob pcm.Blob) error

// Send calls f(blob).
func (f SinkFunc) Send(blob pcm.Blob) error { return f(blob) }

// Capture slices the microphone into fixed-size frames and forwards them,
// encoded, to a Sink.
type Capture struct {
	dev  InputDevice
	opts MicOptions
	emit func(Event)
	log  zerolog.Logger

	state  CaptureState
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	stream MicStream
}

// NewCapture creates an idle capture pipeline. emit must deliver events to
// the loop that owns the Capture.
func NewCapture(dev InputDevice, opts MicOptions, emit func(Event), log zerolog.Logger) *Capture {
	return &Capture{
		dev:  dev,
		opts: opts,
		emit: emit,
		log:  log,
	}
}

// State returns the current lifecycle state.
func (c *Capture) State() CaptureState { return c.state }

// Active reports whether a capture session is requesting or running.
func (c *Capture) Active() bool {
	return c.state == CaptureRequesting || c.state == CaptureCapturing
}

// SetDevice changes the input device used by the next Start.
func (c *Capture) SetDevice(id string) { c.opts.DeviceID = id }

// Start begins acquiring the microphone. It returns false, doing nothing,
// when a capture session is already requesting or running. The outcome
// arrives later as a MicAcquired event.
func (c *Capture) Start(ctx context.Context) bool {
	if c.Active() {
		return false
	}

	c.gen++
	gen := c.gen
	c.state = CaptureRequesting
	c.ctx, c.cancel = context.WithCancel(ctx)

	openCtx, opts := c.ctx, c.opts
	go func() {
		stream, err := c.dev.OpenMic(openCtx, opts)
		c.emit(MicAcquired{Gen: gen, Stream: stream, Err: err})
	}()
	return true
}

// Acquired completes a Start. A stale result (the capture was stopped or
// restarted in the meantime) is released and ignored. On failure the
// capture is cleaned up, left in CaptureError, and the error is returned
// wrapping ErrMicrophoneAcquisition.
func (c *Capture) Acquired(ev MicAcquired) error {
	if ev.Gen != c.gen || c.state != CaptureRequesting {
		if ev.Stream != nil {
			if err := ev.Stream.Close(); err != nil {
				c.log.Debug().Err(err).Msg("Closing stale microphone stream")
			}
		}
		return nil
	}

	if ev.Err != nil {
		c.Stop()
		c.state = CaptureError
		if errors.Is(ev.Err, ErrMicrophoneAcquisition) {
			return ev.Err
		}
		return fmt.Errorf("%w: %w", ErrMicrophoneAcquisition, ev.Err)
	}

	c.stream = ev.Stream
	c.state = CaptureCapturing
	go c.pump(c.ctx, ev.Gen, ev.Stream.Frames())

	c.log.Info().
		Int("rate", c.opts.SampleRate).
		Int("frame_size", c.opts.FrameSize).
		Msg("Microphone acquired")
	return nil
}

// pump re-slices device buffers into FrameSize frames and hands them to the
// loop in capture order.
func (c *Capture) pump(ctx context.Context, gen uint64, frames <-chan []float32) {
	fr := newFramer(c.opts.FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case samples, ok := <-frames:
			if !ok {
				if ctx.Err() == nil {
					c.emit(MicEnded{Gen: gen})
				}
				return
			}
			for _, frame := range fr.push(samples) {
				c.emit(FrameCaptured{Gen: gen, Samples: frame})
			}
		}
	}
}

// Frame encodes one captured frame and sends it. Frames from a stopped or
// superseded capture are dropped. A send failure is returned but leaves the
// capture running.
func (c *Capture) Frame(ev FrameCaptured, sink Sink) error {
	if ev.Gen != c.gen || c.state != CaptureCapturing {
		return nil
	}
	if err := sink.Send(pcm.NewBlob(ev.Samples, c.opts.SampleRate)); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Ended handles a MicEnded event. It reports whether the current capture was
// affected, in which case the capture has been stopped.
func (c *Capture) Ended(ev MicEnded) bool {
	if ev.Gen != c.gen || c.state != CaptureCapturing {
		return false
	}
	c.Stop()
	return true
}

// Stop releases the microphone and returns to CaptureIdle. It is safe to
// call at any time and reports whether anything was active.
func (c *Capture) Stop() bool {
	was := c.state != CaptureIdle

	// Bumping the generation drops in-flight acquisitions and queued frames.
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.ctx = nil
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Closing microphone stream")
		}
		c.stream = nil
	}
	c.state = CaptureIdle
	return was
}

// framer accumulates samples into fixed-size frames.
type framer struct {
	size    int
	pending []float32
}

func newFramer(size int) *framer {
	return &framer{size: size, pending: make([]float32, 0, size)}
}

func (f *framer) push(samples []float32) [][]float32 {
	if f.size <= 0 {
		return [][]float32{samples}
	}
	var out [][]float32
	for len(samples) > 0 {
		n := min(f.size-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]
		if len(f.pending) == f.size {
			out = append(out, f.pending)
			f.pending = make([]float32, 0, f.size)
		}
	}
	return out
}
