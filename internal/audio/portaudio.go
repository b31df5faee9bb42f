package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/live-tray/internal/pcm"
	"github.com/rs/zerolog"
)

// micCloseTimeout bounds how long Close waits for a blocked Read to return.
const micCloseTimeout = time.Second

// PortAudio is the host audio runtime: it opens microphone streams and owns
// the speaker output stream.
type PortAudio struct {
	log zerolog.Logger

	mu  sync.Mutex
	out *speaker
}

var (
	_ InputDevice  = (*PortAudio)(nil)
	_ OutputDevice = (*PortAudio)(nil)
)

// New creates a new PortAudio-based audio runtime
func New(log zerolog.Logger) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudio{log: log}, nil
}

func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if input && d.MaxInputChannels > 0 || !input && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// OpenMic opens a mono capture stream and starts reading it.
func (p *PortAudio) OpenMic(ctx context.Context, opts MicOptions) (MicStream, error) {
	device, err := findDevice(opts.DeviceID, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMicrophoneAcquisition, err)
	}
	if opts.EchoCancellation {
		p.log.Debug().Str("device", device.Name).Msg("Echo cancellation is left to the host device")
	}

	// Some interfaces refuse to open in mono; fall back to every channel
	// they have and downmix.
	channels := 1
	buffer := make([]float32, opts.FrameSize)
	stream, err := openInput(device, channels, opts, buffer)
	if err != nil && device.MaxInputChannels > 1 {
		channels = device.MaxInputChannels
		buffer = make([]float32, opts.FrameSize*channels)
		stream, err = openInput(device, channels, opts, buffer)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open audio stream: %w", ErrMicrophoneAcquisition, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: failed to start audio stream: %w", ErrMicrophoneAcquisition, err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	m := &micStream{
		frames: make(chan []float32, 8),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	var agc *gainControl
	if opts.AutoGainControl {
		agc = newGainControl()
	}

	go func() {
		defer close(m.done)
		defer close(m.frames)
		defer func() {
			stream.Stop()
			stream.Close()
		}()
		for {
			if readCtx.Err() != nil {
				return
			}
			if err := stream.Read(); err != nil {
				p.log.Warn().Err(err).Msg("Microphone read failed")
				return
			}
			samples := downmixInterleaved(buffer, channels, opts.FrameSize)
			if opts.NoiseSuppression {
				gateNoise(samples)
			}
			if agc != nil {
				agc.apply(samples)
			}

			select {
			case m.frames <- samples:
			case <-readCtx.Done():
				return
			default:
				// Drop if channel full (backpressure)
			}
		}
	}()

	p.log.Debug().
		Str("device", device.Name).
		Int("channels", channels).
		Int("rate", opts.SampleRate).
		Msg("Opened microphone")
	return m, nil
}

func openInput(device *portaudio.DeviceInfo, channels int, opts MicOptions, buffer []float32) (*portaudio.Stream, error) {
	return portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(opts.SampleRate),
		FramesPerBuffer: opts.FrameSize,
	}, buffer)
}

type micStream struct {
	frames chan []float32
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *micStream) Frames() <-chan []float32 { return m.frames }

// Close stops the read loop and waits for the device to be released.
func (m *micStream) Close() error {
	m.cancel()
	select {
	case <-m.done:
		return nil
	case <-time.After(micCloseTimeout):
		return fmt.Errorf("microphone stream did not stop within %s", micCloseTimeout)
	}
}

type speaker struct {
	stream *portaudio.Stream
	mix    *mixer
}

// OpenSpeaker starts the output stream. Until it is open, CurrentTime is
// zero and Play fails.
func (p *PortAudio) OpenSpeaker(deviceID string, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		return nil
	}

	device, err := findDevice(deviceID, false)
	if err != nil {
		return fmt.Errorf("failed to get output device: %w", err)
	}
	channels := min(device.MaxOutputChannels, 2)

	mix := newMixer(sampleRate, channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate: float64(sampleRate),
	}, mix.render)
	if err != nil {
		mix.close()
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		mix.close()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	p.out = &speaker{stream: stream, mix: mix}
	p.log.Debug().
		Str("device", device.Name).
		Int("channels", channels).
		Int("rate", sampleRate).
		Msg("Opened speaker")
	return nil
}

func (p *PortAudio) output() *speaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

// CurrentTime returns the output clock in seconds.
func (p *PortAudio) CurrentTime() float64 {
	if out := p.output(); out != nil {
		return out.mix.now()
	}
	return 0
}

// Play schedules buf to start at the given output time.
func (p *PortAudio) Play(buf *pcm.Buffer, at float64, onEnded func()) (Voice, error) {
	out := p.output()
	if out == nil {
		return nil, fmt.Errorf("output stream not open")
	}
	return out.mix.play(buf, at, onEnded), nil
}

func (p *PortAudio) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

// Close stops the speaker and terminates PortAudio. Microphone streams must
// be closed first.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	out := p.out
	p.out = nil
	p.mu.Unlock()

	if out != nil {
		out.stream.Stop()
		out.stream.Close()
		out.mix.close()
	}
	return portaudio.Terminate()
}
