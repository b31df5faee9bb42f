package audio

import (
	"math"
	"sync"

	"github.com/petems/live-tray/internal/pcm"
)

// mixer renders scheduled buffers into an interleaved output stream. Its
// clock advances only as frames are rendered, so CurrentTime is the device
// position rather than wall time.
type mixer struct {
	rate     int
	channels int

	mu     sync.Mutex
	frame  int64
	voices []*voice

	notify chan func()
	done   chan struct{}
}

func newMixer(rate, channels int) *mixer {
	m := &mixer{
		rate:     rate,
		channels: channels,
		notify:   make(chan func(), 64),
		done:     make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// dispatch runs end-of-playback callbacks off the audio thread.
func (m *mixer) dispatch() {
	for {
		select {
		case <-m.done:
			return
		case fn := <-m.notify:
			fn()
		}
	}
}

func (m *mixer) close() {
	close(m.done)
}

func (m *mixer) now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.frame) / float64(m.rate)
}

func (m *mixer) play(buf *pcm.Buffer, at float64, onEnded func()) *voice {
	start := int64(math.Round(at * float64(m.rate)))

	m.mu.Lock()
	defer m.mu.Unlock()
	if start < m.frame {
		start = m.frame
	}
	v := &voice{
		m:       m,
		buf:     buf,
		start:   start,
		step:    float64(buf.SampleRate) / float64(m.rate),
		onEnded: onEnded,
	}
	m.voices = append(m.voices, v)
	return v
}

// render fills out with the mix of every voice due in this window. It runs
// on the audio callback and must not block.
func (m *mixer) render(out []float32) {
	clear(out)
	frames := len(out) / m.channels

	m.mu.Lock()
	var finished []*voice
	kept := m.voices[:0]
	for _, v := range m.voices {
		if v.mix(out, m.frame, frames, m.channels) {
			v.done = true
			finished = append(finished, v)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = kept
	m.frame += int64(frames)
	m.mu.Unlock()

	for _, v := range finished {
		if v.onEnded == nil {
			continue
		}
		select {
		case m.notify <- v.onEnded:
		default:
			go v.onEnded()
		}
	}
}

type voice struct {
	m       *mixer
	buf     *pcm.Buffer
	start   int64
	pos     float64
	step    float64
	done    bool
	onEnded func()
}

// mix adds this voice into out, which starts at device frame base. It
// reports whether the voice has no samples left.
func (v *voice) mix(out []float32, base int64, frames, outCh int) bool {
	length := v.buf.Length()
	for i := 0; i < frames; i++ {
		if base+int64(i) < v.start {
			continue
		}
		idx := int(v.pos)
		if idx >= length {
			return true
		}
		frac := float32(v.pos - float64(idx))
		for c := 0; c < outCh; c++ {
			out[i*outCh+c] += v.sample(idx, frac, c, outCh)
		}
		v.pos += v.step
	}
	return length > 0 && int(v.pos) >= length
}

// sample returns the interpolated value for output channel c. Channel
// layouts that differ are averaged down to mono or spread round-robin.
func (v *voice) sample(idx int, frac float32, c, outCh int) float32 {
	src := v.buf.Channels
	switch {
	case len(src) == 0:
		return 0
	case len(src) == outCh:
		return lerp(src[c], idx, frac)
	case outCh == 1:
		var sum float32
		for _, ch := range src {
			sum += lerp(ch, idx, frac)
		}
		return sum / float32(len(src))
	default:
		return lerp(src[c%len(src)], idx, frac)
	}
}

func lerp(ch []float32, idx int, frac float32) float32 {
	s0 := ch[idx]
	if frac == 0 || idx+1 >= len(ch) {
		return s0
	}
	return s0 + (ch[idx+1]-s0)*frac
}

// Stop removes the voice from the mix. It returns ErrVoiceEnded when the
// voice already finished or was stopped.
func (v *voice) Stop() error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.done {
		return ErrVoiceEnded
	}
	v.done = true
	for i, other := range m.voices {
		if other == v {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			break
		}
	}
	return nil
}
