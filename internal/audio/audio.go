// Package audio owns the local half of the full-duplex pipeline: the
// microphone capture path, the playback scheduler, and the host devices
// they run on.
//
// Capture and Scheduler are not safe for concurrent use. They are owned by a
// single event loop; everything they learn asynchronously (microphone
// acquisition, captured frames, finished playback) comes back as an Event on
// Pipeline.Events.
package audio

import (
	"context"
	"errors"

	"github.com/petems/live-tray/internal/pcm"
)

var (
	// ErrMicrophoneAcquisition wraps any failure to open the input device.
	ErrMicrophoneAcquisition = errors.New("audio: microphone acquisition failed")

	// ErrVoiceEnded is returned by Voice.Stop when playback already finished.
	ErrVoiceEnded = errors.New("audio: voice already ended")
)

// MicOptions configures a microphone stream.
type MicOptions struct {
	DeviceID         string
	SampleRate       int
	FrameSize        int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// InputDevice acquires microphone streams.
type InputDevice interface {
	OpenMic(ctx context.Context, opts MicOptions) (MicStream, error)
	ListDevices() ([]AudioDevice, error)
}

// MicStream is an acquired microphone. Frames is closed when the stream ends.
type MicStream interface {
	Frames() <-chan []float32
	Close() error
}

// OutputDevice plays buffers against its own clock. Times are seconds of
// audio rendered since the device started.
type OutputDevice interface {
	CurrentTime() float64
	Play(buf *pcm.Buffer, at float64, onEnded func()) (Voice, error)
}

// Voice is a buffer scheduled on an OutputDevice.
type Voice interface {
	Stop() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}
