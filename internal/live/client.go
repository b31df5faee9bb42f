// Package live is a client for the Gemini Live BidiGenerateContent websocket
// protocol.
//
// A Session streams realtime audio to the model and reports everything the
// server sends through Callbacks. Callbacks run on the session's receive
// goroutine; they must not block for long and must not call Close.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/petems/live-tray/internal/pcm"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"
	endpointPath   = "/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultQueueSize    = 64
	defaultSetupTimeout = 15 * time.Second

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
	readLimit         = 4 << 20
)

var (
	// ErrSessionEstablish is returned when dialing or the setup handshake fails.
	ErrSessionEstablish = errors.New("live: session could not be established")

	// ErrSendFailure is returned when an outbound chunk cannot be queued.
	ErrSendFailure = errors.New("live: send failed")

	// ErrSessionClosed marks errors caused by the connection going away.
	ErrSessionClosed = errors.New("live: session closed")
)

// Callbacks receive session events. Any of them may be nil.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(*ServerMessage)
	OnError   func(error)
	OnClose   func(reason string)
}

// SessionConfig is sent to the server in the setup frame.
type SessionConfig struct {
	Voice             string
	LanguageCode      string
	SystemInstruction string
	// Transcribe asks the server to send a text transcript of its audio.
	Transcribe bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the websocket endpoint base. An empty u keeps the
// default.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithLogger sets the logger sessions write to.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithQueueSize sets how many outbound chunks may wait for the writer.
func WithQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithSetupTimeout bounds the wait for the server's setupComplete.
func WithSetupTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.setupTimeout = d
		}
	}
}

// Client opens live sessions.
type Client struct {
	apiKey       string
	baseURL      string
	log          zerolog.Logger
	queueSize    int
	setupTimeout time.Duration
}

// New creates a Client that authenticates with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		log:          zerolog.Nop(),
		queueSize:    defaultQueueSize,
		setupTimeout: defaultSetupTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect dials the server, sends the setup frame and waits for
// setupComplete. OnOpen runs before Connect returns; the receive loop starts
// right after it, so OnMessage never precedes OnOpen.
func (c *Client) Connect(ctx context.Context, model string, cb Callbacks, cfg SessionConfig) (*Session, error) {
	id := uuid.NewString()
	log := c.log.With().Str("session", id).Logger()

	endpoint := c.baseURL + endpointPath + "?key=" + url.QueryEscape(c.apiKey)
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", ErrSessionEstablish, err)
	}
	conn.SetReadLimit(readLimit)

	if err := c.handshake(ctx, conn, model, cfg); err != nil {
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("%w: %w", ErrSessionEstablish, err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     id,
		conn:   conn,
		cb:     cb,
		log:    log,
		out:    make(chan []byte, c.queueSize),
		ctx:    sessCtx,
		cancel: cancel,
	}

	log.Info().Str("model", model).Msg("Live session established")
	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	go s.receiveLoop()
	go s.writeLoop()
	go s.keepaliveLoop()

	return s, nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn, model string, cfg SessionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, c.setupTimeout)
	defer cancel()

	data, err := json.Marshal(newSetup(model, cfg))
	if err != nil {
		return fmt.Errorf("marshal setup: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send setup: %w", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("await setup: %w", err)
		}
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Skipping malformed frame during setup")
			continue
		}
		if msg.Error != nil {
			return msg.Error
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

// Session is one open live connection. It is safe for concurrent use.
type Session struct {
	id   string
	conn *websocket.Conn
	cb   Callbacks
	log  zerolog.Logger
	out  chan []byte

	mu     sync.Mutex
	closed bool
	failed error

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// ID returns the identifier used in logs for this session.
func (s *Session) ID() string { return s.id }

// SendRealtimeInput queues blob for delivery without blocking. Chunks are
// written in the order they were queued.
func (s *Session) SendRealtimeInput(blob pcm.Blob) error {
	data, err := json.Marshal(realtimeInputMessage{
		RealtimeInput: realtimeInput{MediaChunks: []pcm.Blob{blob}},
	})
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrSendFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %w", ErrSendFailure, ErrSessionClosed)
	}
	if s.failed != nil {
		return fmt.Errorf("%w: %w", ErrSendFailure, s.failed)
	}
	select {
	case s.out <- data:
		return nil
	default:
		return fmt.Errorf("%w: outbound queue full", ErrSendFailure)
	}
}

// Close ends the session with a normal closure. It is idempotent; OnClose
// fires once with an empty reason.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if err := s.conn.Close(websocket.StatusNormalClosure, "session closed"); err != nil {
		s.log.Debug().Err(err).Msg("Closing websocket")
	}
	s.log.Info().Msg("Live session closed")
	return nil
}

func (s *Session) receiveLoop() {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.finish(err)
			return
		}

		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn().Err(err).Msg("Skipping malformed frame")
			continue
		}
		if msg.Error != nil {
			s.log.Error().Err(msg.Error).Msg("Server reported an error")
			if s.cb.OnError != nil {
				s.cb.OnError(msg.Error)
			}
			continue
		}
		if msg.ServerContent != nil && s.cb.OnMessage != nil {
			s.cb.OnMessage(&msg)
		}
	}
}

// finish reports why the receive loop stopped: a local Close or a close
// frame from the server becomes OnClose, anything else OnError.
func (s *Session) finish(err error) {
	s.mu.Lock()
	local := s.closed
	if !local && s.failed == nil {
		s.failed = err
	}
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		var ce websocket.CloseError
		switch {
		case local:
			s.notifyClose("")
		case errors.As(err, &ce):
			s.log.Info().Int("code", int(ce.Code)).Str("reason", ce.Reason).Msg("Server closed the session")
			s.notifyClose(ce.Reason)
		default:
			s.log.Error().Err(err).Msg("Live session read failed")
			if s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("%w: %w", ErrSessionClosed, err))
			}
		}
		s.cancel()
	})
}

func (s *Session) notifyClose(reason string) {
	if s.cb.OnClose != nil {
		s.cb.OnClose(reason)
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case data := <-s.out:
			if err := s.conn.Write(s.ctx, websocket.MessageText, data); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.log.Error().Err(err).Msg("Writing realtime input")
				s.mu.Lock()
				if s.failed == nil {
					s.failed = err
				}
				s.mu.Unlock()
				return
			}
		}
	}
}

func (s *Session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			if err := s.conn.Ping(pingCtx); err != nil && s.ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("Keepalive ping failed")
			}
			cancel()
		}
	}
}
