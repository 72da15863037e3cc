package captions

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

const DefaultRestartDelay = time.Second

// Sink is the caption log the pipeline writes local results into.
type Sink interface {
	UpsertLocalCaption(entry domain.CaptionEntry)
	DropProvisionalCaption()
}

// Publisher broadcasts final captions to other participants.
type Publisher interface {
	Send(ev protocol.Event) bool
}

type Options struct {
	Speaker      domain.LocalUser
	RestartDelay time.Duration
	Clock        clockwork.Clock
	// Post runs fn on the owner's loop. Recognizer callbacks and restart
	// timers go through it.
	Post func(fn func())
}

// Pipeline drives a Recognizer while captions are enabled, restarting it
// whenever it stops on its own.
type Pipeline struct {
	rec  core.Recognizer
	sink Sink
	out  Publisher
	opts Options

	enabled bool
	running bool
	restart clockwork.Timer
	lastErr error
}

func New(rec core.Recognizer, sink Sink, out Publisher, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	p := &Pipeline{rec: rec, sink: sink, out: out, opts: opts}
	if rec != nil {
		rec.OnResult(func(r core.RecognitionResult) { opts.Post(func() { p.handleResult(r) }) })
		rec.OnError(func(code string) { opts.Post(func() { p.handleError(code) }) })
		rec.OnEnd(func() { opts.Post(p.handleEnd) })
	}
	return p
}

// Available reports whether a recognizer is present at all.
func (p *Pipeline) Available() bool { return p.rec != nil }

func (p *Pipeline) Enabled() bool { return p.enabled }

// Err returns the error that last disabled captioning, if any.
func (p *Pipeline) Err() error { return p.lastErr }

// Enable starts recognition. It clears a previous fatal error.
func (p *Pipeline) Enable() error {
	if p.rec == nil {
		return fmt.Errorf("%w: no speech recognizer", domain.ErrDeviceUnavailable)
	}
	if p.enabled {
		return nil
	}
	p.enabled = true
	p.lastErr = nil
	p.start()
	return nil
}

// Disable stops recognition and discards any provisional caption.
func (p *Pipeline) Disable() {
	if !p.enabled {
		return
	}
	p.enabled = false
	p.halt()
	p.sink.DropProvisionalCaption()
}

func (p *Pipeline) start() {
	if p.running || !p.enabled {
		return
	}
	if err := p.rec.Start(); err != nil {
		log.Warn().Err(err).Str("module", "captions").Msg("recognizer start failed")
		p.scheduleRestart()
		return
	}
	p.running = true
}

func (p *Pipeline) halt() {
	if p.restart != nil {
		p.restart.Stop()
		p.restart = nil
	}
	if p.running {
		p.running = false
		p.rec.Stop()
	}
}

func (p *Pipeline) scheduleRestart() {
	if p.restart != nil {
		return
	}
	p.restart = p.opts.Clock.AfterFunc(p.opts.RestartDelay, func() {
		p.opts.Post(func() {
			p.restart = nil
			p.start()
		})
	})
}

func (p *Pipeline) handleResult(r core.RecognitionResult) {
	if !p.enabled || r.Text == "" {
		return
	}
	now := p.opts.Clock.Now()
	p.sink.UpsertLocalCaption(domain.CaptionEntry{
		Speaker:   p.opts.Speaker.DisplayName,
		Text:      r.Text,
		Timestamp: now,
		Final:     r.Final,
	})
	if !r.Final {
		return
	}
	ok := p.out.Send(protocol.Subtitle{
		UserID:    p.opts.Speaker.ID,
		Speaker:   p.opts.Speaker.DisplayName,
		Text:      r.Text,
		Timestamp: now.UnixMilli(),
		Final:     true,
	})
	if !ok {
		log.Debug().Str("module", "captions").Msg("subtitle dropped")
	}
}

// Error codes reported by the recognition engine.
const (
	CodeNoSpeech          = "no-speech"
	CodeAborted           = "aborted"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
)

func (p *Pipeline) handleError(code string) {
	logger := log.With().Str("module", "captions").Str("code", code).Logger()
	switch code {
	case CodeNoSpeech, CodeAborted:
		logger.Debug().Msg("recognition interrupted")
	case CodeNotAllowed, CodeServiceNotAllowed:
		p.lastErr = fmt.Errorf("%w: %s", domain.ErrFatalRecognition, code)
		logger.Error().Err(p.lastErr).Msg("captions disabled")
		p.enabled = false
		p.halt()
		p.sink.DropProvisionalCaption()
	default:
		logger.Warn().Err(fmt.Errorf("%w: %s", domain.ErrTransientRecognition, code)).Msg("recognition error, restarting")
		p.running = false
		p.scheduleRestart()
	}
}

// handleEnd restarts right away unless a delayed restart is already pending.
func (p *Pipeline) handleEnd() {
	p.running = false
	if !p.enabled || p.restart != nil {
		return
	}
	p.start()
}
