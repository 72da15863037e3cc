package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	// URL is the relay base, e.g. ws://host/api/v1/video-meeting.
	URL             string
	HeartbeatPeriod time.Duration
	WriteWait       time.Duration
	ReadLimit       int64
	SendBuffer      int
	Clock           clockwork.Clock
	Dialer          *websocket.Dialer
}

func (o *Options) defaults() {
	if o.HeartbeatPeriod <= 0 {
		o.HeartbeatPeriod = 30 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Dialer opens websocket connections to the meeting relay.
type Dialer struct {
	opts Options
}

func NewDialer(opts Options) *Dialer {
	opts.defaults()
	return &Dialer{opts: opts}
}

// Open dials {URL}/ws/{meetingID}. The credential is sent both as a bearer
// header and as query parameters, which is what the relay reads.
func (d *Dialer) Open(ctx context.Context, meetingID domain.MeetingID, cred core.Credential) (core.SignalConnection, error) {
	if !cred.Valid() {
		return nil, domain.ErrAuthRequired
	}
	u, err := d.endpoint(meetingID, cred)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)

	logger := log.With().Str("module", "signal").Str("meeting", string(meetingID)).Logger()
	logger.Info().Str("url", redact(u)).Msg("dialing relay")

	ws, _, err := d.opts.Dialer.DialContext(ctx, u, header)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	ws.SetReadLimit(d.opts.ReadLimit)

	c := newConnection(ws, d.opts)
	go c.writePump()
	go c.readPump()
	go c.heartbeat()
	logger.Info().Msg("relay connected")
	return c, nil
}

func (d *Dialer) endpoint(meetingID domain.MeetingID, cred core.Credential) (string, error) {
	base, err := url.Parse(d.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse signal url: %w", err)
	}
	base = base.JoinPath("ws", string(meetingID))
	q := base.Query()
	q.Set("user_id", strconv.FormatInt(int64(cred.User.ID), 10))
	q.Set("display_name", cred.User.DisplayName)
	q.Set("token", cred.Token)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "xxx")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Connection is one open relay websocket.
type Connection struct {
	conn *websocket.Conn
	send chan core.Frame
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	closed     bool
	finished   bool
	closeErr   error
	onClose    func(error)
	finishOnce sync.Once
	flushed    chan struct{}

	handler    atomic.Pointer[func(protocol.Event)]
	handlerSet chan struct{}
	handleOnce sync.Once
}

func newConnection(ws *websocket.Conn, opts Options) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:       ws,
		send:       make(chan core.Frame, opts.SendBuffer),
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		handlerSet: make(chan struct{}),
		flushed:    make(chan struct{}),
	}
}

// Send encodes ev and queues it for writing. It never blocks: while the
// connection is closed or the queue is full the event is dropped.
func (c *Connection) Send(ev protocol.Event) bool {
	data, err := protocol.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", string(ev.EventType())).Msg("encode")
		return false
	}
	if err := c.TrySend(data); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("type", string(ev.EventType())).Msg("send dropped")
		return false
	}
	return true
}

func (c *Connection) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Connection) OnEvent(fn func(protocol.Event)) {
	c.handler.Store(&fn)
	c.handleOnce.Do(func() { close(c.handlerSet) })
}

// OnClose registers fn. If the connection is already down fn runs at once.
func (c *Connection) OnClose(fn func(error)) {
	c.mu.Lock()
	if !c.finished {
		c.onClose = fn
		c.mu.Unlock()
		return
	}
	err := c.closeErr
	c.mu.Unlock()
	fn(err)
}

func (c *Connection) Status() domain.ConnStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.StatusClosed
	}
	return domain.StatusOpen
}

// Close flushes queued events, sends a normal close frame and shuts the
// connection down. It is idempotent.
func (c *Connection) Close() {
	if !c.markClosed(nil) {
		return
	}
	select {
	case <-c.flushed:
	case <-time.After(c.opts.WriteWait):
	}
	deadline := time.Now().Add(c.opts.WriteWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	c.finish()
}

func (c *Connection) shutdown(cause error) {
	c.markClosed(cause)
	c.finish()
}

// markClosed stops accepting sends. It reports false if already closed.
func (c *Connection) markClosed(cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.closeErr = cause
	close(c.send)
	return true
}

func (c *Connection) finish() {
	c.finishOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()

		c.mu.Lock()
		c.finished = true
		cause := c.closeErr
		onClose := c.onClose
		c.mu.Unlock()

		if cause != nil {
			log.Warn().Err(cause).Str("module", "signal").Msg("relay connection lost")
		} else {
			log.Info().Str("module", "signal").Msg("relay connection closed")
		}
		if onClose != nil {
			onClose(cause)
		}
	})
}
