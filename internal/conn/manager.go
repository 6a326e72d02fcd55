package conn

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const dialTimeout = 10 * time.Second

// Options tunes the reconnect and heartbeat behavior.
type Options struct {
	// BaseDelay is the first retry delay. Defaults to 1s.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff. Defaults to 30s.
	MaxDelay time.Duration
	// Heartbeat is the interval between client heartbeats; 0 disables them.
	Heartbeat time.Duration
}

// Backoff returns the retry delay for the n-th consecutive failure:
// min(base << n, max). Non-decreasing in n.
func Backoff(n int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	d := base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Manager owns the single live event-stream connection. It dials, retries
// with exponential backoff, and delivers raw frames until Disconnect.
//
// Transport errors never stop retries; only Disconnect does. The frames
// channel closes on Disconnect, which is the teardown signal to the consumer.
type Manager struct {
	opts   Options
	tokens auth.TokenSource
	log    *zerolog.Logger

	frames   chan []byte
	sessions sync.WaitGroup // live session goroutines; drained before frames closes

	mu       sync.Mutex
	status   Status
	attempts int
	conn     *websocket.Conn
	cancel   context.CancelFunc
	gen      uint64 // session generation; stale goroutines must not touch shared fields
	closed   bool
}

// NewManager builds a manager. tokens supplies the credential read once per
// connect attempt; a nil source connects unauthenticated.
func NewManager(opts Options, tokens auth.TokenSource, logger *zerolog.Logger) *Manager {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	return &Manager{
		opts:   opts,
		tokens: tokens,
		log:    logger,
		frames: make(chan []byte, 64),
	}
}

// Frames returns the channel of raw inbound frames. It closes on Disconnect.
func (m *Manager) Frames() <-chan []byte { return m.frames }

// Status reports the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ReconnectAttempts reports consecutive failed attempts since the last
// successful open.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect establishes the stream to endpoint. A prior connection or pending
// retry is torn down first, so at most one socket is ever open or pending.
func (m *Manager) Connect(ctx context.Context, endpoint string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		prior := m.conn
		m.conn = nil
		go prior.Close(websocket.StatusNormalClosure, "replaced")
	}
	sessCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.gen++
	gen := m.gen
	m.sessions.Add(1)
	m.status = StatusConnecting
	m.mu.Unlock()

	go m.run(sessCtx, endpoint, gen)
}

// Disconnect sets the do-not-reconnect flag, cancels any pending retry and
// closes the socket. This is the only way retries stop.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	cancel := m.cancel
	m.cancel = nil
	c := m.conn
	m.conn = nil
	m.status = StatusDisconnected
	m.mu.Unlock()

	if c != nil {
		_ = c.Close(websocket.StatusNormalClosure, "bye")
	}
	if cancel != nil {
		cancel()
	}
	// Session goroutines own in-flight frame sends; they exit promptly once
	// their context is cancelled. Closing frames is safe only after that.
	m.sessions.Wait()
	close(m.frames)
}

// Send writes one JSON message to the stream. When the stream is not
// connected the message is silently dropped, not queued.
func (m *Manager) Send(ctx context.Context, v any) error {
	m.mu.Lock()
	c := m.conn
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || c == nil {
		m.log.Debug().Msg("send dropped: not connected")
		return nil
	}
	return wsjson.Write(ctx, c, v)
}

func (m *Manager) run(ctx context.Context, endpoint string, gen uint64) {
	defer m.sessions.Done()

	for {
		c, err := m.dial(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Str("endpoint", endpoint).Msg("stream dial failed")
			if !m.waitRetry(ctx, gen) {
				return
			}
			continue
		}

		m.mu.Lock()
		if m.closed || m.gen != gen {
			m.mu.Unlock()
			_ = c.Close(websocket.StatusNormalClosure, "bye")
			return
		}
		m.conn = c
		m.status = StatusConnected
		m.attempts = 0
		m.mu.Unlock()
		m.log.Info().Str("endpoint", endpoint).Msg("stream connected")

		m.readFrames(ctx, c)
		_ = c.Close(websocket.StatusNormalClosure, "closing")

		m.mu.Lock()
		// A replacement session may already own these fields.
		if m.gen == gen {
			m.conn = nil
			m.status = StatusDisconnected
		}
		m.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if !m.waitRetry(ctx, gen) {
			return
		}
	}
}

// waitRetry sleeps for the backoff delay derived from the attempt count
// before this failure, then bumps the counter. False means the session was
// torn down while waiting.
func (m *Manager) waitRetry(ctx context.Context, gen uint64) bool {
	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.mu.Unlock()
		return false
	}
	n := m.attempts
	m.attempts++
	m.status = StatusDisconnected
	m.mu.Unlock()

	delay := Backoff(n, m.opts.BaseDelay, m.opts.MaxDelay)
	m.log.Info().Int("attempt", n+1).Dur("delay", delay).Msg("scheduling reconnect")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.status = StatusConnecting
	m.mu.Unlock()
	return true
}

func (m *Manager) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	target := endpoint
	if m.tokens != nil {
		// Token is read once per attempt, never mid-connection.
		if tok := m.tokens.Token(); tok != "" {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			target = endpoint + sep + "token=" + url.QueryEscape(tok)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, _, err := websocket.Dial(dialCtx, target, nil)
	return c, err
}

func (m *Manager) readFrames(ctx context.Context, c *websocket.Conn) {
	if m.opts.Heartbeat > 0 {
		hbCtx, stop := context.WithCancel(ctx)
		defer stop()
		go m.heartbeatLoop(hbCtx, c)
	}

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				status := websocket.CloseStatus(err)
				if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
					m.log.Info().Msg("stream closed by server")
				} else {
					m.log.Warn().Err(err).Msg("stream read failed")
				}
			}
			return
		}

		select {
		case m.frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) heartbeatLoop(ctx context.Context, c *websocket.Conn) {
	ticker := time.NewTicker(m.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, c, proto.Heartbeat()); err != nil {
				if ctx.Err() == nil {
					m.log.Warn().Err(err).Msg("heartbeat write failed")
				}
				return
			}
		}
	}
}
