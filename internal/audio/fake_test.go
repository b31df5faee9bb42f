package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/petems/live-tray/internal/pcm"
)

// Mock implementations for testing

type mockStream struct {
	frames chan []float32

	mu     sync.Mutex
	closed int
}

func newMockStream() *mockStream {
	return &mockStream{frames: make(chan []float32, 16)}
}

func (m *mockStream) Frames() <-chan []float32 { return m.frames }

func (m *mockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockStream) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockInput struct {
	stream *mockStream
	err    error

	mu    sync.Mutex
	opens int
	last  MicOptions
}

func (m *mockInput) OpenMic(ctx context.Context, opts MicOptions) (MicStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	m.last = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.stream, nil
}

func (m *mockInput) ListDevices() ([]AudioDevice, error) {
	return []AudioDevice{{ID: "default", Name: "Default", Default: true}}, nil
}

// fakeClock is an OutputDevice whose time only moves when the test says so.
type fakeClock struct {
	now    float64
	err    error
	voices []*fakeVoice
}

type fakeVoice struct {
	buf     *pcm.Buffer
	at      float64
	onEnded func()
	ended   bool
	stopped bool
}

func (v *fakeVoice) Stop() error {
	if v.ended || v.stopped {
		return ErrVoiceEnded
	}
	v.stopped = true
	return nil
}

// finish simulates the device reaching the end of the buffer.
func (v *fakeVoice) finish() {
	v.ended = true
	v.onEnded()
}

func (c *fakeClock) CurrentTime() float64 { return c.now }

func (c *fakeClock) Play(buf *pcm.Buffer, at float64, onEnded func()) (Voice, error) {
	if c.err != nil {
		return nil, c.err
	}
	v := &fakeVoice{buf: buf, at: at, onEnded: onEnded}
	c.voices = append(c.voices, v)
	return v, nil
}

func seconds(rate int, secs float64) *pcm.Buffer {
	return &pcm.Buffer{
		SampleRate: rate,
		Channels:   [][]float32{make([]float32, int(secs*float64(rate)))},
	}
}

var errBoom = errors.New("boom")
