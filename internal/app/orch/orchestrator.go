package orch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/dkeye/meetsync/internal/app/captions"
	"github.com/dkeye/meetsync/internal/app/mesh"
	"github.com/dkeye/meetsync/internal/app/store"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

const inboxSize = 256

// Deps are the capabilities a session drives. Devices and Recognizer may be
// nil, in which case media and captions are unavailable.
type Deps struct {
	Signaler   core.Signaler
	Peers      core.PeerFactory
	Devices    core.MediaDevices
	Recognizer core.Recognizer
	Clock      clockwork.Clock
}

type Options struct {
	MeetingID           domain.MeetingID
	Credential          core.Credential
	CaptionRestartDelay time.Duration
	CursorLimit         int
	CursorInterval      time.Duration
}

// Session runs one meeting connection. Inbound events, intents, peer
// callbacks and timers are all serialized onto a single loop goroutine, so
// the store, the mesh and the caption pipeline are never touched
// concurrently.
type Session struct {
	id     string
	deps   Deps
	opts   Options
	logger zerolog.Logger

	inbox   chan func()
	done    chan struct{}
	ending  atomic.Bool
	endOnce sync.Once

	conn     core.SignalConnection
	store    *store.Store
	mesh     *mesh.Coordinator
	captions *captions.Pipeline
	cursors  *RateLimiter

	tracks     map[core.MediaKind]core.LocalTrack
	stopRec    func()
	captionErr error

	final      atomic.Pointer[store.State]
	transcript atomic.Pointer[[]domain.TranscriptEntry]
	lost       atomic.Bool
}

// Open connects to the meeting and starts the session loop.
func Open(ctx context.Context, deps Deps, opts Options) (*Session, error) {
	if !opts.Credential.Valid() {
		return nil, domain.ErrAuthRequired
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	self := opts.Credential.User

	s := &Session{
		id:     uuid.NewString(),
		deps:   deps,
		opts:   opts,
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
		store:  store.New(opts.MeetingID, self, deps.Clock),
		tracks: make(map[core.MediaKind]core.LocalTrack),
	}
	s.logger = log.With().Str("module", "session").Str("session", s.id).Str("meeting", string(opts.MeetingID)).Logger()

	conn, err := deps.Signaler.Open(ctx, opts.MeetingID, opts.Credential)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.store.SetStatus(conn.Status())
	s.mesh = mesh.New(self.ID, deps.Peers, conn, s.store, s.post)
	s.captions = captions.New(deps.Recognizer, s.store, conn, captions.Options{
		Speaker:      self,
		RestartDelay: opts.CaptionRestartDelay,
		Clock:        deps.Clock,
		Post:         s.post,
	})
	s.cursors = NewRateLimiter(opts.CursorLimit, opts.CursorInterval, deps.Clock)

	go s.loop(ctx)
	conn.OnClose(func(err error) { s.post(func() { s.onDisconnect(err) }) })
	conn.OnEvent(func(ev protocol.Event) { s.post(func() { s.dispatch(ev) }) })

	s.logger.Info().Stringer("user", self.ID).Msg("session opened")
	return s, nil
}

func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		select {
		case fn := <-s.inbox:
			fn()
		case <-ctx.Done():
			s.end("session closed", true)
			return
		case <-s.done:
			return
		}
	}
}

// post queues fn on the loop. Once teardown has begun fn is discarded.
func (s *Session) post(fn func()) {
	if s.ending.Load() {
		return
	}
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

// call runs fn on the loop and waits for its result. It returns
// domain.ErrTerminated if the session ends before fn runs.
func (s *Session) call(fn func() error) error {
	var started atomic.Bool
	errc := make(chan error, 1)
	select {
	case s.inbox <- func() { started.Store(true); errc <- fn() }:
	case <-s.done:
		return domain.ErrTerminated
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		if started.Load() {
			return <-errc
		}
		return domain.ErrTerminated
	}
}

func (s *Session) dispatch(ev protocol.Event) {
	for _, eff := range s.store.Apply(ev) {
		switch e := eff.(type) {
		case store.CallPeer:
			s.mesh.Initiate(e.Peer)
		case store.ClosePeer:
			s.mesh.Close(e.Peer)
		case store.RouteSignal:
			s.mesh.HandleSignal(e.Signal)
		case store.Terminate:
			s.logger.Warn().Str("reason", e.Reason).Msg("removed from meeting")
			s.end(e.Reason, true)
			return
		}
	}
}

func (s *Session) onDisconnect(err error) {
	s.store.SetStatus(domain.StatusClosed)
	if err != nil {
		s.store.SetLastError(err.Error())
	}
	s.lost.Store(true)
	s.end("connection lost", false)
}

// end tears everything down without waiting on in-flight negotiation. When
// terminate is false the store stays non-terminated so a reconnect policy
// can tell a lost connection from a finished meeting.
func (s *Session) end(reason string, terminate bool) {
	s.endOnce.Do(func() {
		s.ending.Store(true)
		s.stopRecording()
		s.captions.Disable()
		errs := s.mesh.CloseAll()
		for kind, tr := range s.tracks {
			s.releaseTrack(kind, tr)
		}
		s.conn.Close()

		s.syncCaptions()
		s.store.SetStatus(domain.StatusClosed)
		if terminate && !s.store.View().Terminated {
			s.store.Terminate(reason)
		}
		snap := s.store.Snapshot()
		s.final.Store(&snap)
		tr := s.store.Transcript()
		s.transcript.Store(&tr)

		if errs != nil {
			s.logger.Warn().Err(errs).Int("errors", len(multierr.Errors(errs))).Msg("teardown errors")
		}
		s.logger.Info().Str("reason", reason).Msg("session ended")
		close(s.done)
	})
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Lost reports whether the session ended because the connection dropped.
func (s *Session) Lost() bool { return s.lost.Load() }

func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the meeting state. After the session ends it
// returns the final state.
func (s *Session) Snapshot() store.State {
	var st store.State
	if err := s.call(func() error {
		s.syncCaptions()
		st = s.store.Snapshot()
		return nil
	}); err != nil {
		if p := s.final.Load(); p != nil {
			return *p
		}
	}
	return st
}

func (s *Session) Transcript() []domain.TranscriptEntry {
	var out []domain.TranscriptEntry
	if err := s.call(func() error { out = s.store.Transcript(); return nil }); err != nil {
		if p := s.transcript.Load(); p != nil {
			return *p
		}
	}
	return out
}

// Close ends the session without announcing a departure.
func (s *Session) Close() {
	if err := s.call(func() error { s.end("session closed", true); return nil }); err != nil {
		<-s.done
	}
}
