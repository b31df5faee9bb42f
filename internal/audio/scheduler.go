package audio

import (
	"errors"
	"math"

	"github.com/petems/live-tray/internal/pcm"
	"github.com/rs/zerolog"
)

// HandleID identifies a scheduled buffer.
type HandleID uint64

// Scheduled describes where a buffer landed on the device clock.
type Scheduled struct {
	ID       HandleID
	Start    float64
	Duration float64
	// Lead is how far ahead of the device clock the buffer was placed.
	Lead float64
}

// Scheduler places decoded buffers back to back on the output clock and
// tracks the ones still queued or playing so they can be cancelled.
type Scheduler struct {
	dev  OutputDevice
	emit func(Event)
	log  zerolog.Logger

	next   float64
	seq    HandleID
	active map[HandleID]Voice
}

// NewScheduler creates a scheduler on dev. Natural ends are reported as
// PlaybackEnded events through emit.
func NewScheduler(dev OutputDevice, emit func(Event), log zerolog.Logger) *Scheduler {
	return &Scheduler{
		dev:    dev,
		emit:   emit,
		log:    log,
		active: make(map[HandleID]Voice),
	}
}

// Initialize anchors the cursor at the device's current time.
func (s *Scheduler) Initialize() {
	s.next = s.dev.CurrentTime()
}

// Cursor returns the time at which the next buffer will start, before the
// current-time guard is applied.
func (s *Scheduler) Cursor() float64 { return s.next }

// Active returns the number of buffers queued or playing.
func (s *Scheduler) Active() int { return len(s.active) }

// Enqueue schedules buf immediately after everything already scheduled, or
// at the current device time if the cursor has fallen behind it.
func (s *Scheduler) Enqueue(buf *pcm.Buffer) (Scheduled, error) {
	now := s.dev.CurrentTime()
	s.next = math.Max(s.next, now)

	s.seq++
	id := s.seq
	voice, err := s.dev.Play(buf, s.next, func() {
		s.emit(PlaybackEnded{ID: id})
	})
	if err != nil {
		return Scheduled{}, err
	}

	sc := Scheduled{
		ID:       id,
		Start:    s.next,
		Duration: buf.Duration(),
		Lead:     s.next - now,
	}
	s.next += sc.Duration
	s.active[id] = voice
	return sc, nil
}

// Release forgets a buffer that finished on its own. Releasing an unknown
// or already cancelled handle is a no-op.
func (s *Scheduler) Release(id HandleID) bool {
	if _, ok := s.active[id]; !ok {
		return false
	}
	delete(s.active, id)
	return true
}

// Interrupt stops every active buffer and zeroes the cursor, so the next
// Enqueue re-anchors on the device clock. It returns how many buffers were
// stopped.
func (s *Scheduler) Interrupt() int {
	n := len(s.active)
	for id, voice := range s.active {
		if err := voice.Stop(); err != nil && !errors.Is(err, ErrVoiceEnded) {
			s.log.Debug().Err(err).Uint64("handle", uint64(id)).Msg("Stopping voice")
		}
		delete(s.active, id)
	}
	s.next = 0
	return n
}

// Reset interrupts playback and re-anchors the cursor.
func (s *Scheduler) Reset() {
	s.Interrupt()
	s.Initialize()
}
