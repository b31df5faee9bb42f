package app

import (
	"context"
	"errors"
	"sync"

	"github.com/petems/live-tray/internal/audio"
	"github.com/petems/live-tray/internal/live"
	"github.com/petems/live-tray/internal/pcm"
)

// Mock implementations for testing

var errBoom = errors.New("boom")

type mockMic struct {
	frames chan []float32

	mu     sync.Mutex
	closed bool
}

func (m *mockMic) Frames() <-chan []float32 { return m.frames }

func (m *mockMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockMic) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockInput struct {
	mu      sync.Mutex
	err     error
	streams []*mockMic
	last    audio.MicOptions
}

func (m *mockInput) OpenMic(ctx context.Context, opts audio.MicOptions) (audio.MicStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = opts
	if m.err != nil {
		return nil, m.err
	}
	s := &mockMic{frames: make(chan []float32, 16)}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *mockInput) ListDevices() ([]audio.AudioDevice, error) {
	return []audio.AudioDevice{{ID: "default", Name: "Default", Default: true}}, nil
}

func (m *mockInput) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockInput) options() audio.MicOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *mockInput) latest() *mockMic {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// mockOutput is an output device whose clock only moves when told to.
type mockOutput struct {
	mu     sync.Mutex
	now    float64
	voices []*mockVoice
}

type mockVoice struct {
	out      *mockOutput
	at       float64
	duration float64
	stopped  bool
}

func (v *mockVoice) Stop() error {
	v.out.mu.Lock()
	defer v.out.mu.Unlock()
	if v.stopped {
		return audio.ErrVoiceEnded
	}
	v.stopped = true
	return nil
}

func (o *mockOutput) CurrentTime() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *mockOutput) Play(buf *pcm.Buffer, at float64, onEnded func()) (audio.Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := &mockVoice{out: o, at: at, duration: buf.Duration()}
	o.voices = append(o.voices, v)
	return v, nil
}

func (o *mockOutput) setNow(t float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = t
}

func (o *mockOutput) played() []mockVoice {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]mockVoice, len(o.voices))
	for i, v := range o.voices {
		out[i] = *v
	}
	return out
}

// mockConnector hands out sessions and records whether two were ever open
// at the same time.
type mockConnector struct {
	mu         sync.Mutex
	err        error
	gate       chan struct{}
	sessions   []*mockSession
	open       int
	maxOpen    int
	violations int
}

func (c *mockConnector) Connect(ctx context.Context, cb live.Callbacks) (Session, error) {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	if c.open > 0 {
		c.violations++
	}
	c.open++
	c.maxOpen = max(c.maxOpen, c.open)
	s := &mockSession{conn: c, cb: cb}
	c.sessions = append(c.sessions, s)
	c.mu.Unlock()

	if cb.OnOpen != nil {
		cb.OnOpen()
	}
	return s, nil
}

func (c *mockConnector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *mockConnector) session(i int) *mockSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[i]
}

func (c *mockConnector) latest() *mockSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[len(c.sessions)-1]
}

func (c *mockConnector) stats() (maxOpen, violations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxOpen, c.violations
}

type mockSession struct {
	conn *mockConnector
	cb   live.Callbacks

	mu      sync.Mutex
	sent    []pcm.Blob
	sendErr error
	closed  bool
}

func (s *mockSession) SendRealtimeInput(blob pcm.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, blob)
	return nil
}

func (s *mockSession) Close() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.conn.open--
	}
	return nil
}

func (s *mockSession) setSendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

func (s *mockSession) sentBlobs() []pcm.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pcm.Blob(nil), s.sent...)
}

func (s *mockSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mockUpdater records published snapshots.
type mockUpdater struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (u *mockUpdater) Update(s Snapshot) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.snaps = append(u.snaps, s)
}

func (u *mockUpdater) all() []Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Snapshot(nil), u.snaps...)
}
