// Package app is the session lifecycle controller. It owns the audio
// pipeline and the live session and runs every state transition on a single
// event loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petems/live-tray/internal/audio"
	"github.com/petems/live-tray/internal/config"
	"github.com/petems/live-tray/internal/live"
	"github.com/petems/live-tray/internal/observe"
	"github.com/petems/live-tray/internal/pcm"
	"github.com/rs/zerolog"
)

// Status strings shown to the user.
const (
	StatusInitial    = "Click the record button to start"
	StatusRequesting = "Requesting microphone..."
	StatusRecording  = "🔴 Recording..."
	StatusStopping   = "Stopping recording..."
	StatusStopped    = "Recording stopped. Ready to start again."
	StatusResetting  = "Resetting session..."
	StatusReset      = "Session reset. Ready."
	StatusConnected  = "Connected. Ready to chat!"
)

// ErrNotRunning is returned by requests made after the loop exited.
var ErrNotRunning = errors.New("app: not running")

type SessionState int

const (
	Disconnected SessionState = iota
	Connecting
	Connected
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Session is an open live session.
type Session interface {
	SendRealtimeInput(blob pcm.Blob) error
	Close() error
}

// Connector opens sessions. Connect may block; callbacks may run on any
// goroutine.
type Connector interface {
	Connect(ctx context.Context, cb live.Callbacks) (Session, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, cb live.Callbacks) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context, cb live.Callbacks) (Session, error) {
	return f(ctx, cb)
}

// Snapshot is the observable state. Exactly one of Status and Error is
// non-empty.
type Snapshot struct {
	Status    string
	Error     string
	Recording bool
	Capture   audio.CaptureState
	Session   SessionState
	Playing   int

	// Transcript is the model's spoken output for the current or last turn,
	// when the session transcribes output.
	Transcript string
}

// Message returns whichever of Error and Status is set.
func (s Snapshot) Message() string {
	if s.Error != "" {
		return s.Error
	}
	return s.Status
}

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	Update(Snapshot)
}

type Config struct {
	Input     audio.InputDevice
	Output    audio.OutputDevice
	Connector Connector
	Config    *config.Config
	Logger    zerolog.Logger
	Metrics   *observe.Metrics // Optional - defaults to observe.DefaultMetrics
	// SaveConfig persists settings changed from the tray. Optional.
	SaveConfig    func() error
	StatusUpdater StatusUpdater // Optional - can be nil
}

type App struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *observe.Metrics
	connector Connector
	input     audio.InputDevice
	save      func() error
	updater   StatusUpdater
	pipe      *audio.Pipeline

	events  chan event
	stopped chan struct{}
	runOnce sync.Once
	postMu  sync.Mutex
	exited  bool

	mu   sync.Mutex
	snap Snapshot

	// Owned by the loop.
	state    SessionState
	session  Session
	gen      uint64
	inflight int
	draining bool
	settle   *time.Timer
	settleID uint64
	status   string
	errMsg   string

	transcript string
	turnDone   bool
}

func New(cfg Config) *App {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	mic := audio.MicOptions{
		DeviceID:         cfg.Config.Audio.InputDevice,
		SampleRate:       cfg.Config.Audio.CaptureRate,
		FrameSize:        cfg.Config.Audio.FrameSize,
		EchoCancellation: cfg.Config.Audio.EchoCancellation,
		NoiseSuppression: cfg.Config.Audio.NoiseSuppression,
		AutoGainControl:  cfg.Config.Audio.AutoGainControl,
	}
	a := &App{
		cfg:       cfg.Config,
		log:       cfg.Logger,
		metrics:   m,
		connector: cfg.Connector,
		input:     cfg.Input,
		save:      cfg.SaveConfig,
		updater:   cfg.StatusUpdater,
		pipe:      audio.NewPipeline(cfg.Input, cfg.Output, mic, cfg.Logger),
		events:    make(chan event, 64),
		stopped:   make(chan struct{}),
		status:    StatusInitial,
	}
	a.snap = Snapshot{Status: StatusInitial}
	return a
}

// Run opens the first session and processes events until ctx is cancelled.
// On return the microphone, playback and session are released.
func (a *App) Run(ctx context.Context) error {
	var started bool
	a.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("app: already running")
	}

	a.pipe.Playback.Initialize()
	a.open(ctx)
	a.publish()

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			a.exit()
			return nil
		case ev := <-a.events:
			a.handle(ctx, ev)
		case ev := <-a.pipe.Events():
			a.handleAudio(ctx, ev)
		}
		a.publish()
	}
}

// Start begins recording.
func (a *App) Start() { a.post(cmdStart{}) }

// Stop ends recording.
func (a *App) Stop() { a.post(cmdStop{}) }

// Reset stops recording, drops pending playback and replaces the session.
func (a *App) Reset() { a.post(cmdReset{}) }

func (a *App) OnHotkey(pressed bool) { a.post(cmdHotkey{pressed: pressed}) }

// SetMode switches between push-to-talk and toggle.
func (a *App) SetMode(mode string) error {
	return a.request(func(reply chan error) event { return cmdMode{mode: mode, reply: reply} })
}

// SetDevice selects the input device for the next recording.
func (a *App) SetDevice(id string) error {
	return a.request(func(reply chan error) event { return cmdDevice{id: id, reply: reply} })
}

// request posts a command and waits for the loop to answer it.
func (a *App) request(build func(reply chan error) event) error {
	reply := make(chan error, 1)
	if !a.post(build(reply)) {
		return ErrNotRunning
	}
	select {
	case err := <-reply:
		return err
	case <-a.stopped:
		return ErrNotRunning
	}
}

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.input.ListDevices()
}

// Snapshot returns the latest published state.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Recording reports whether the microphone is requested or capturing.
func (a *App) Recording() bool {
	return a.Snapshot().Recording
}

// Done is closed once Run has returned.
func (a *App) Done() <-chan struct{} { return a.stopped }

func (a *App) post(ev event) bool {
	a.postMu.Lock()
	defer a.postMu.Unlock()
	if a.exited {
		return false
	}
	select {
	case a.events <- ev:
		return true
	case <-a.stopped:
		return false
	}
}

// exit stops accepting events and releases sessions whose connect finished
// after shutdown.
func (a *App) exit() {
	close(a.stopped)
	a.postMu.Lock()
	a.exited = true
	a.postMu.Unlock()

	for {
		select {
		case ev := <-a.events:
			if c, ok := ev.(sessionConnected); ok && c.sess != nil {
				c.sess.Close()
			}
		default:
			return
		}
	}
}

func (a *App) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case cmdStart:
		a.start(ctx)
	case cmdStop:
		a.stop()
	case cmdReset:
		a.reset(ctx)
	case cmdHotkey:
		a.hotkey(ctx, ev.pressed)
	case cmdDevice:
		ev.reply <- a.setDevice(ev.id)
	case cmdMode:
		ev.reply <- a.setMode(ev.mode)
	case sessionConnected:
		a.connected(ev)
	case sessionOpened:
		if ev.gen == a.gen {
			a.metrics.SessionsOpened.Add(ctx, 1)
			a.setStatus(StatusConnected)
		}
	case sessionMessage:
		if ev.gen == a.gen {
			a.message(ctx, ev.msg)
		}
	case sessionError:
		if ev.gen == a.gen {
			a.sessionFailed(ev.err)
		}
	case sessionClosed:
		if ev.gen == a.gen {
			a.sessionEnded(ev.reason)
		}
	case settleElapsed:
		if ev.gen == a.settleID && a.settle != nil {
			a.settle = nil
			a.open(ctx)
			a.setStatus(StatusReset)
		}
	}
}

func (a *App) handleAudio(ctx context.Context, ev audio.Event) {
	switch ev := ev.(type) {
	case audio.MicAcquired:
		if err := a.pipe.Capture.Acquired(ev); err != nil {
			a.log.Error().Err(err).Msg("Error starting recording")
			a.setError("Mic error: " + err.Error())
			return
		}
		if a.pipe.Capture.State() == audio.CaptureCapturing {
			a.setStatus(StatusRecording)
		}
	case audio.FrameCaptured:
		if err := a.pipe.Capture.Frame(ev, audio.SinkFunc(func(blob pcm.Blob) error {
			return a.send(ctx, blob)
		})); err != nil {
			a.metrics.SendFailures.Add(ctx, 1)
			a.log.Warn().Err(err).Msg("Error sending realtime input")
			a.setError("Audio send error: " + err.Error())
		}
	case audio.MicEnded:
		if a.pipe.Capture.Ended(ev) {
			a.log.Warn().Msg("Microphone stream ended")
			a.setError("Mic error: microphone stream ended")
		}
	case audio.PlaybackEnded:
		if a.pipe.Playback.Release(ev.ID) {
			a.metrics.RecordReleased(ctx, 1)
		}
	}
}

// send forwards one frame to the current session. Without a session the
// frame is dropped.
func (a *App) send(ctx context.Context, blob pcm.Blob) error {
	if a.state != Connected || a.session == nil {
		return nil
	}
	if err := a.session.SendRealtimeInput(blob); err != nil {
		return err
	}
	a.metrics.FramesSent.Add(ctx, 1)
	return nil
}

func (a *App) start(ctx context.Context) {
	if a.pipe.Capture.Active() {
		return
	}
	a.setStatus(StatusRequesting)
	a.pipe.Capture.Start(ctx)
	a.log.Info().Msg("Starting recording")
}

func (a *App) stop() {
	if !a.pipe.Capture.Active() {
		return
	}
	a.setStatus(StatusStopping)
	a.pipe.Capture.Stop()
	a.log.Info().Msg("Recording stopped")
	a.setStatus(StatusStopped)
}

func (a *App) hotkey(ctx context.Context, pressed bool) {
	mode := config.ModePushToTalk
	if a.cfg.Mode == config.ModeToggle {
		mode = config.ModeToggle
	}

	switch mode {
	case config.ModePushToTalk:
		if pressed {
			a.start(ctx)
		} else {
			a.stop()
		}
	case config.ModeToggle:
		if !pressed {
			return
		}
		if a.pipe.Capture.Active() {
			a.stop()
		} else {
			a.start(ctx)
		}
	}
}

func (a *App) setMode(mode string) error {
	if mode != config.ModePushToTalk && mode != config.ModeToggle {
		return fmt.Errorf("unknown mode %q", mode)
	}
	if a.cfg.Mode == mode {
		return nil
	}
	a.log.Info().Str("from", a.cfg.Mode).Str("to", mode).Msg("Changed mode")
	a.cfg.Mode = mode
	if a.save != nil {
		return a.save()
	}
	return nil
}

func (a *App) setDevice(id string) error {
	if a.pipe.Capture.Active() {
		return fmt.Errorf("cannot change while recording")
	}
	a.pipe.Capture.SetDevice(id)
	a.cfg.Audio.InputDevice = id
	if a.save != nil {
		return a.save()
	}
	return nil
}

// open starts connecting a new session in the background. Every callback
// and the connect result carry the generation current at the call.
func (a *App) open(ctx context.Context) {
	a.gen++
	gen := a.gen
	a.state = Connecting
	a.inflight++

	cb := live.Callbacks{
		OnOpen:    func() { a.post(sessionOpened{gen: gen}) },
		OnMessage: func(msg *live.ServerMessage) { a.post(sessionMessage{gen: gen, msg: msg}) },
		OnError:   func(err error) { a.post(sessionError{gen: gen, err: err}) },
		OnClose:   func(reason string) { a.post(sessionClosed{gen: gen, reason: reason}) },
	}
	go func() {
		sess, err := a.connector.Connect(ctx, cb)
		if !a.post(sessionConnected{gen: gen, sess: sess, err: err}) && sess != nil {
			sess.Close()
		}
	}()
}

func (a *App) connected(ev sessionConnected) {
	a.inflight--

	if ev.gen != a.gen {
		// Superseded by a reset while connecting.
		if ev.sess != nil {
			if err := ev.sess.Close(); err != nil {
				a.log.Warn().Err(err).Msg("Closing superseded session")
			}
		}
		if a.draining && a.inflight == 0 {
			a.draining = false
			a.scheduleSettle()
		}
		return
	}

	if ev.err != nil {
		a.state = Disconnected
		a.log.Error().Err(ev.err).Msg("Failed to initialize session")
		a.setError("Failed to initialize session: " + ev.err.Error())
		return
	}
	a.session = ev.sess
	a.state = Connected
}

func (a *App) message(ctx context.Context, msg *live.ServerMessage) {
	if blob := msg.InlineAudio(); blob != nil {
		a.play(ctx, blob)
	}
	if msg.Interrupted() {
		n := a.pipe.Playback.Interrupt()
		a.metrics.RecordInterruption(ctx, n)
		a.log.Debug().Int("stopped", n).Msg("Playback interrupted")
	}
	if text := msg.OutputTranscript(); text != "" {
		if a.turnDone {
			a.transcript = ""
			a.turnDone = false
		}
		a.transcript += text
		a.log.Debug().Str("transcript", text).Msg("Model output")
	}
	if msg.ServerContent != nil && msg.ServerContent.TurnComplete {
		a.turnDone = true
	}
}

func (a *App) play(ctx context.Context, blob *pcm.Blob) {
	rate := pcm.ParseRate(blob.MimeType, a.cfg.Audio.PlaybackRate)
	buf, err := pcm.Decode(blob.Data, rate, 1)
	if err != nil {
		a.metrics.DecodeErrors.Add(ctx, 1)
		a.log.Error().Err(err).Msg("Error decoding or playing audio")
		a.setError("Audio playback error: " + err.Error())
		return
	}
	sc, err := a.pipe.Playback.Enqueue(buf)
	if err != nil {
		a.log.Error().Err(err).Msg("Error decoding or playing audio")
		a.setError("Audio playback error: " + err.Error())
		return
	}
	a.metrics.RecordScheduled(ctx, sc.Lead)
	a.log.Debug().
		Float64("start", sc.Start).
		Float64("duration", sc.Duration).
		Float64("lead", sc.Lead).
		Msg("Scheduled audio")
}

func (a *App) sessionFailed(err error) {
	a.log.Error().Err(err).Msg("Session error")
	a.setError("Session Error: " + err.Error())
	if errors.Is(err, live.ErrSessionClosed) {
		a.dropSession()
	}
}

func (a *App) sessionEnded(reason string) {
	if reason == "" {
		reason = "Unknown reason"
	}
	a.log.Info().Str("reason", reason).Msg("Session closed")
	a.dropSession()
	a.setStatus("Session closed: " + reason)
}

func (a *App) dropSession() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.Debug().Err(err).Msg("Closing ended session")
		}
		a.session = nil
	}
	a.state = Disconnected
}

// reset replaces the session. The old session is closed before the settle
// timer starts; if a connect is still in flight the timer waits for it to
// resolve and be closed.
func (a *App) reset(ctx context.Context) {
	a.setStatus(StatusResetting)
	if a.pipe.Capture.Stop() {
		a.log.Info().Msg("Recording stopped for reset")
	}
	a.metrics.RecordReleased(ctx, a.pipe.Playback.Interrupt())

	a.gen++
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Error closing session")
		}
		a.session = nil
	}
	a.state = Disconnected

	if a.inflight > 0 {
		a.draining = true
		return
	}
	a.scheduleSettle()
}

func (a *App) scheduleSettle() {
	if a.settle != nil {
		a.settle.Stop()
	}
	a.settleID++
	id := a.settleID
	a.settle = time.AfterFunc(a.cfg.ResetDelay(), func() {
		a.post(settleElapsed{gen: id})
	})
}

func (a *App) shutdown() {
	if a.settle != nil {
		a.settle.Stop()
		a.settle = nil
	}
	a.gen++
	a.pipe.Close()
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Error closing session")
		}
		a.session = nil
	}
	a.state = Disconnected
	a.log.Info().Msg("Controller stopped")
}

func (a *App) setStatus(msg string) {
	a.status = msg
	a.errMsg = ""
}

func (a *App) setError(msg string) {
	a.errMsg = msg
	a.status = ""
}

func (a *App) publish() {
	snap := Snapshot{
		Status:    a.status,
		Error:     a.errMsg,
		Recording: a.pipe.Capture.Active(),
		Capture:   a.pipe.Capture.State(),
		Session:   a.state,
		Playing:   a.pipe.Playback.Active(),

		Transcript: a.transcript,
	}

	a.mu.Lock()
	changed := snap != a.snap
	a.snap = snap
	a.mu.Unlock()

	if changed && a.updater != nil {
		a.updater.Update(snap)
	}
}
