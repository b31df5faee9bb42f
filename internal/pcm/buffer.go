package pcm

import "time"

// Buffer is a playable block of planar float samples at a declared rate.
// The rate is independent of the output device; the device resamples.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NumberOfChannels returns the channel count.
func (b *Buffer) NumberOfChannels() int {
	return len(b.Channels)
}

// Length returns the number of frames per channel.
func (b *Buffer) Length() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Length()) / float64(b.SampleRate)
}

// Span returns Duration as a time.Duration, for logging.
func (b *Buffer) Span() time.Duration {
	return time.Duration(b.Duration() * float64(time.Second))
}
