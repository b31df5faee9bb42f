package audio

import (
	"sync"

	"github.com/rs/zerolog"
)

// Pipeline bundles the capture and playback halves and the event channel
// through which both report back to their owner.
type Pipeline struct {
	Capture  *Capture
	Playback *Scheduler

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewPipeline wires a capture pipeline on in and a scheduler on out.
func NewPipeline(in InputDevice, out OutputDevice, mic MicOptions, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	p.Capture = NewCapture(in, mic, p.emit, log.With().Str("component", "capture").Logger())
	p.Playback = NewScheduler(out, p.emit, log.With().Str("component", "playback").Logger())
	return p
}

// Events returns the channel the owning loop must drain.
func (p *Pipeline) Events() <-chan Event { return p.events }

func (p *Pipeline) emit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.done:
		// Nobody is listening anymore; don't leak a freshly opened mic.
		if acq, ok := ev.(MicAcquired); ok && acq.Stream != nil {
			acq.Stream.Close()
		}
	}
}

// Close stops capture and playback and releases goroutines blocked on
// emitting. It must be called from the owning loop.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.Capture.Stop()
		p.Playback.Interrupt()
		close(p.done)
	})
}
