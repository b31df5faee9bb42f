package audio

// Event is something the pipeline learned asynchronously and hands back to
// its owning loop.
type Event interface {
	audioEvent()
}

// MicAcquired reports the outcome of Capture.Start.
type MicAcquired struct {
	Gen    uint64
	Stream MicStream
	Err    error
}

// FrameCaptured carries one fixed-size frame from the microphone.
type FrameCaptured struct {
	Gen     uint64
	Samples []float32
}

// MicEnded reports that the microphone stream closed on its own.
type MicEnded struct {
	Gen uint64
}

// PlaybackEnded reports that a scheduled buffer finished naturally.
type PlaybackEnded struct {
	ID HandleID
}

func (MicAcquired) audioEvent()   {}
func (FrameCaptured) audioEvent() {}
func (MicEnded) audioEvent()      {}
func (PlaybackEnded) audioEvent() {}
