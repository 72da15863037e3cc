package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
)

// Error codes handed to OnError for transport failures. Codes sent by the
// engine itself are passed through unchanged.
const (
	CodeNetwork           = "network"
	CodeServiceNotAllowed = "service-not-allowed"
)

var ErrRunning = errors.New("recognition already running")

type Options struct {
	// URL is the engine's streaming endpoint, e.g. ws://localhost:2700.
	URL       string
	Language  string
	ReadLimit int64
	Dialer    *websocket.Dialer
}

// Engine is a recognizer backed by a streaming speech service. The service
// captures local audio itself and pushes one JSON message per result; a
// recognition session lasts until it closes the socket.
type Engine struct {
	opts Options

	mu       sync.Mutex
	active   *run
	onResult func(core.RecognitionResult)
	onError  func(code string)
	onEnd    func()
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// message covers partial, final and error frames.
type message struct {
	Partial string `json:"partial"`
	Text    string `json:"text"`
	Error   string `json:"error"`
	Result  []struct {
		Conf float64 `json:"conf"`
	} `json:"result"`
}

func (m message) confidence() float64 {
	if len(m.Result) == 0 {
		return 1
	}
	var sum float64
	for _, w := range m.Result {
		sum += w.Conf
	}
	return sum / float64(len(m.Result))
}

func New(opts Options) *Engine {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 << 10
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Engine{opts: opts}
}

func (e *Engine) OnResult(fn func(core.RecognitionResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onResult = fn
}

func (e *Engine) OnError(fn func(code string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

func (e *Engine) OnEnd(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnd = fn
}

// Start opens a recognition session in the background. Dial failures are
// reported through OnError followed by OnEnd.
func (e *Engine) Start() error {
	u, err := e.endpoint()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{ctx: ctx, cancel: cancel}
	e.active = r
	go e.serve(r, u)
	return nil
}

// Stop ends the current session. No callbacks fire for it afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	r := e.active
	e.active = nil
	e.mu.Unlock()
	if r != nil {
		r.cancel()
	}
}

func (e *Engine) endpoint() (string, error) {
	u, err := url.Parse(e.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse engine url: %w", err)
	}
	if e.opts.Language != "" {
		q := u.Query()
		q.Set("lang", e.opts.Language)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (e *Engine) serve(r *run, u string) {
	logger := log.With().Str("module", "speech").Logger()
	defer e.finish(r)

	ws, resp, err := e.opts.Dialer.DialContext(r.ctx, u, nil)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		code := CodeNetwork
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			code = CodeServiceNotAllowed
		}
		logger.Warn().Err(err).Str("code", code).Msg("engine dial failed")
		e.emitError(r, code)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(e.opts.ReadLimit)
	stop := context.AfterFunc(r.ctx, func() { _ = ws.Close() })
	defer stop()
	logger.Debug().Msg("recognition session started")

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if r.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("engine read error")
				e.emitError(r, CodeNetwork)
			}
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn().Err(err).Msg("engine message ignored")
			continue
		}
		switch {
		case msg.Error != "":
			e.emitError(r, msg.Error)
		case msg.Text != "":
			e.emitResult(r, core.RecognitionResult{Text: msg.Text, Final: true, Confidence: msg.confidence()})
		case msg.Partial != "":
			e.emitResult(r, core.RecognitionResult{Text: msg.Partial})
		}
	}
}

// finish releases the session slot before reporting the end, so a restart
// triggered by OnEnd can start a new one.
func (e *Engine) finish(r *run) {
	e.mu.Lock()
	if e.active == r {
		e.active = nil
	}
	fn := e.onEnd
	e.mu.Unlock()
	ended := r.ctx.Err() == nil
	r.cancel()
	if ended && fn != nil {
		fn()
	}
}

func (e *Engine) emitResult(r *run, res core.RecognitionResult) {
	e.mu.Lock()
	fn := e.onResult
	e.mu.Unlock()
	if fn != nil && r.ctx.Err() == nil {
		fn(res)
	}
}

func (e *Engine) emitError(r *run, code string) {
	e.mu.Lock()
	fn := e.onError
	e.mu.Unlock()
	if fn != nil && r.ctx.Err() == nil {
		fn(code)
	}
}
