package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

const selfID domain.UserID = 1

var cred = core.Credential{Token: "tok", User: domain.LocalUser{ID: selfID, DisplayName: "Me"}}

type fakeConn struct {
	mu      sync.Mutex
	sent    []protocol.Event
	closed  bool
	onEvent func(protocol.Event)
	onClose func(error)
}

func (c *fakeConn) Send(ev protocol.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.sent = append(c.sent, ev)
	return true
}

func (c *fakeConn) OnEvent(fn func(protocol.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

func (c *fakeConn) OnClose(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *fakeConn) Status() domain.ConnStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.StatusClosed
	}
	return domain.StatusOpen
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) emit(ev protocol.Event) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	fn(ev)
}

func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.closed = true
	fn := c.onClose
	c.mu.Unlock()
	fn(err)
}

// sentOf returns the outbound events of type T.
func sentOf[T protocol.Event](c *fakeConn) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []T
	for _, ev := range c.sent {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

type fakeSignaler struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (f *fakeSignaler) Open(context.Context, domain.MeetingID, core.Credential) (core.SignalConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeSignaler) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeSignaler) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[len(f.conns)-1]
}

type fakePeer struct {
	mu     sync.Mutex
	tracks map[webrtc.RTPCodecType]webrtc.TrackLocal
	closed bool
}

func (p *fakePeer) ReplaceTrack(kind webrtc.RTPCodecType, t webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks[kind] = t
	return nil
}

func (p *fakePeer) track(kind webrtc.RTPCodecType) webrtc.TrackLocal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracks[kind]
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (p *fakePeer) SetRemoteDescription(webrtc.SessionDescription) error { return nil }
func (p *fakePeer) AddICECandidate(webrtc.ICECandidateInit) error        { return nil }
func (p *fakePeer) OnICECandidate(func(webrtc.ICECandidateInit))         {}
func (p *fakePeer) OnTrack(func(core.RemoteTrack))                       {}
func (p *fakePeer) OnClosed(func())                                      {}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakePeers struct {
	mu    sync.Mutex
	peers map[domain.UserID]*fakePeer
}

func (f *fakePeers) NewPeer(id domain.UserID) (core.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{tracks: make(map[webrtc.RTPCodecType]webrtc.TrackLocal)}
	f.peers[id] = p
	return p, nil
}

func (f *fakePeers) get(id domain.UserID) *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peers[id]
}

type fakeTrack struct {
	*webrtc.TrackLocalStaticRTP
	mu      sync.Mutex
	enabled bool
	onEnded func()
}

func (t *fakeTrack) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
}

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

func (t *fakeTrack) end() {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()
	fn()
}

func (t *fakeTrack) Stop() {}

type fakeDevices struct {
	mu       sync.Mutex
	tracks   map[core.MediaKind]*fakeTrack
	released map[core.MediaKind]int
	deny     bool
}

func (d *fakeDevices) Acquire(_ context.Context, kind core.MediaKind) (core.LocalTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deny {
		return nil, domain.ErrPermissionDenied
	}
	mime := webrtc.MimeTypeVP8
	if kind == core.MediaAudio {
		mime = webrtc.MimeTypeOpus
	}
	rtp, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: mime}, string(kind), "local")
	if err != nil {
		return nil, err
	}
	t := &fakeTrack{TrackLocalStaticRTP: rtp}
	d.tracks[kind] = t
	return t, nil
}

func (d *fakeDevices) Release(tr core.LocalTrack) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for kind, t := range d.tracks {
		if core.LocalTrack(t) == tr {
			d.released[kind]++
		}
	}
}

func (d *fakeDevices) track(kind core.MediaKind) *fakeTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracks[kind]
}

func (d *fakeDevices) releases(kind core.MediaKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released[kind]
}

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type fixture struct {
	signaler *fakeSignaler
	peers    *fakePeers
	devices  *fakeDevices
	clock    fakeClock
	session  *Session
	conn     *fakeConn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		signaler: &fakeSignaler{},
		peers:    &fakePeers{peers: make(map[domain.UserID]*fakePeer)},
		devices:  &fakeDevices{tracks: make(map[core.MediaKind]*fakeTrack), released: make(map[core.MediaKind]int)},
		clock:    clockwork.NewFakeClock(),
	}
	s, err := Open(context.Background(), f.deps(), Options{
		MeetingID:      "abc-defg-hij",
		Credential:     cred,
		CursorLimit:    2,
		CursorInterval: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	f.session = s
	f.conn = f.signaler.last()
	return f
}

func (f *fixture) deps() Deps {
	return Deps{Signaler: f.signaler, Peers: f.peers, Devices: f.devices, Clock: f.clock}
}

// admit joins the local user with role and waits for it to land.
func (f *fixture) admit(t *testing.T, role domain.Role) {
	t.Helper()
	f.conn.emit(protocol.Join{UserID: selfID, Role: role})
	require.True(t, f.session.Snapshot().Admitted)
}

func TestOpenRequiresCredential(t *testing.T) {
	sig := &fakeSignaler{}
	_, err := Open(context.Background(), Deps{Signaler: sig}, Options{MeetingID: "abc"})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Zero(t, sig.opened())
}

func TestOpenFailure(t *testing.T) {
	sig := &fakeSignaler{err: errors.New("refused")}
	_, err := Open(context.Background(), Deps{Signaler: sig}, Options{MeetingID: "abc", Credential: cred})
	assert.EqualError(t, err, "refused")
}

func TestIntentsBlockedWhileWaiting(t *testing.T) {
	f := newFixture(t)
	f.conn.emit(protocol.Waiting{})

	assert.ErrorIs(t, f.session.SendChat("hi"), domain.ErrNotAdmitted)
	assert.ErrorIs(t, f.session.SetHandRaised(true), domain.ErrNotAdmitted)
	assert.ErrorIs(t, f.session.SetMedia(context.Background(), core.MediaAudio, true), domain.ErrNotAdmitted)
	assert.Empty(t, sentOf[protocol.Chat](f.conn))

	f.conn.emit(protocol.Admitted{})
	assert.NoError(t, f.session.SendChat("hi"))
}

func TestChatIsNotRecordedLocally(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	require.NoError(t, f.session.SendChat("  hello  "))
	chats := sentOf[protocol.Chat](f.conn)
	require.Len(t, chats, 1)
	assert.Equal(t, "hello", chats[0].Text)
	assert.Empty(t, f.session.Snapshot().Chat)

	assert.ErrorIs(t, f.session.SendChat("   "), domain.ErrInvalidIntent)
}

func TestLocalIntentsApplyImmediately(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	require.NoError(t, f.session.SetHandRaised(true))
	require.NoError(t, f.session.UpdateNote("agenda"))
	require.NoError(t, f.session.React("🎉"))

	st := f.session.Snapshot()
	require.Len(t, st.Hands, 1)
	assert.Equal(t, selfID, st.Hands[0].ID)
	assert.Equal(t, "agenda", st.Note)
	require.Len(t, st.Reactions, 1)

	assert.Len(t, sentOf[protocol.HandRaise](f.conn), 1)
	assert.Len(t, sentOf[protocol.NoteUpdate](f.conn), 1)
	assert.Len(t, sentOf[protocol.Reaction](f.conn), 1)
}

func TestPollIntents(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	assert.ErrorIs(t, f.session.VotePoll(0), domain.ErrInvalidIntent)
	assert.ErrorIs(t, f.session.CreatePoll("Lunch?", []string{"Pizza"}), domain.ErrInvalidIntent)

	require.NoError(t, f.session.CreatePoll("Lunch?", []string{"Pizza", "Sushi"}))
	require.NoError(t, f.session.VotePoll(1))
	assert.ErrorIs(t, f.session.VotePoll(2), domain.ErrInvalidIntent)

	f.conn.emit(protocol.PollVote{OptionIndex: 1})
	poll := f.session.Snapshot().Poll
	require.NotNil(t, poll)
	assert.Equal(t, []int{0, 2}, poll.Votes)
	assert.Len(t, sentOf[protocol.PollVote](f.conn), 1)
}

func TestQuestionIntents(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	id, err := f.session.AskQuestion("Why?")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, f.session.UpvoteQuestion(id))
	require.NoError(t, f.session.UpvoteQuestion(id))
	assert.Len(t, sentOf[protocol.QAUpvote](f.conn), 1, "one upvote per user")

	st := f.session.Snapshot()
	require.Len(t, st.Questions, 1)
	assert.Equal(t, 1, st.Questions[0].Upvotes)
	assert.True(t, st.Questions[0].UpvotedMe)

	assert.ErrorIs(t, f.session.UpvoteQuestion("nope"), domain.ErrInvalidIntent)
	require.NoError(t, f.session.DeleteQuestion(id))
	assert.Empty(t, f.session.Snapshot().Questions)
}

func TestCursorRateLimit(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.session.MoveCursor(float64(i), 1, "#f00"))
	}
	assert.Len(t, sentOf[protocol.CursorMove](f.conn), 2)

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.session.MoveCursor(9, 9, "#f00"))
	assert.Len(t, sentOf[protocol.CursorMove](f.conn), 3)
}

func TestHostIntents(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)
	assert.ErrorIs(t, f.session.UpdateSettings(domain.AdminSettings{Locked: true}), domain.ErrNotHost)
	assert.ErrorIs(t, f.session.Admin(protocol.AdminKick, 2, ""), domain.ErrNotHost)

	f.conn.emit(protocol.RoleUpdate{UserID: selfID, Role: domain.RoleHost})
	f.conn.emit(protocol.WaitingUser{UserID: 7, Name: "Sam"})
	require.Len(t, f.session.Snapshot().WaitingQueue, 1)

	require.NoError(t, f.session.UpdateSettings(domain.AdminSettings{Locked: true}))
	assert.False(t, f.session.Snapshot().Settings.Locked, "settings wait for SETTINGS_UPDATE")

	require.NoError(t, f.session.Admin(protocol.AdminAdmit, 7, ""))
	assert.Empty(t, f.session.Snapshot().WaitingQueue)

	assert.ErrorIs(t, f.session.Admin(protocol.AdminSetRole, 2, "admin"), domain.ErrInvalidIntent)
	assert.ErrorIs(t, f.session.Admin(protocol.AdminKick, selfID, ""), domain.ErrInvalidIntent)
	require.NoError(t, f.session.Admin(protocol.AdminSetRole, 2, domain.RolePresenter))

	actions := sentOf[protocol.AdminAction](f.conn)
	require.Len(t, actions, 2)
	assert.Equal(t, protocol.AdminAction{Action: protocol.AdminSetRole, TargetID: 2, Role: domain.RolePresenter}, actions[1])
}

func TestJoinCallsPeerWhenMediaActive(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	f.conn.emit(protocol.Join{UserID: 2, Name: "Bob"})
	f.session.Snapshot()
	assert.Empty(t, sentOf[protocol.Signal](f.conn), "no media, no call")

	require.NoError(t, f.session.SetMedia(context.Background(), core.MediaAudio, true))
	f.conn.emit(protocol.Join{UserID: 3, Name: "Eve"})
	f.session.Snapshot()

	offers := sentOf[protocol.Signal](f.conn)
	require.Len(t, offers, 1)
	assert.Equal(t, domain.UserID(3), offers[0].Target)
	assert.Equal(t, protocol.SignalOffer, offers[0].Payload.Type)
	assert.Same(t, f.devices.track(core.MediaAudio), f.peers.get(3).track(webrtc.RTPCodecTypeAudio))
}

func TestMediaStartCallsPresentParticipants(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)
	f.conn.emit(protocol.Participants{Participants: []domain.Participant{
		{ID: selfID, Name: "Me"}, {ID: 2, Name: "Bob"},
	}})

	require.NoError(t, f.session.SetMedia(context.Background(), core.MediaVideo, true))
	offers := sentOf[protocol.Signal](f.conn)
	require.Len(t, offers, 1)
	assert.Equal(t, domain.UserID(2), offers[0].Target)
}

func TestMediaStartCallsPeerWithIdleLink(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)
	f.conn.emit(protocol.Participants{Participants: []domain.Participant{
		{ID: selfID, Name: "Me"}, {ID: 2, Name: "Bob"},
	}})
	cand := webrtc.ICECandidateInit{Candidate: "candidate:early"}
	f.conn.emit(protocol.Signal{Sender: 2, Payload: protocol.SignalPayload{Candidate: &cand}})
	f.session.Snapshot()
	require.NotNil(t, f.peers.get(2), "early candidate opens a link")
	require.Empty(t, sentOf[protocol.Signal](f.conn))

	require.NoError(t, f.session.SetMedia(context.Background(), core.MediaAudio, true))
	offers := sentOf[protocol.Signal](f.conn)
	require.Len(t, offers, 1)
	assert.Equal(t, domain.UserID(2), offers[0].Target)
	assert.Equal(t, protocol.SignalOffer, offers[0].Payload.Type)
}

func TestMuteKeepsTrack(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	require.NoError(t, f.session.SetMedia(context.Background(), core.MediaAudio, true))
	mic := f.devices.track(core.MediaAudio)
	require.True(t, mic.Enabled())

	require.NoError(t, f.session.SetMedia(context.Background(), core.MediaAudio, false))
	assert.False(t, mic.Enabled())
	assert.Zero(t, f.devices.releases(core.MediaAudio))
	assert.False(t, f.session.Snapshot().Media.Audio)
}

func TestScreenShareReplacesCamera(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)
	f.conn.emit(protocol.Participants{Participants: []domain.Participant{{ID: 2, Name: "Bob"}}})

	ctx := context.Background()
	require.NoError(t, f.session.SetMedia(ctx, core.MediaVideo, true))
	peer := f.peers.get(2)
	require.NotNil(t, peer)
	cam := f.devices.track(core.MediaVideo)
	assert.Same(t, cam, peer.track(webrtc.RTPCodecTypeVideo))

	require.NoError(t, f.session.SetMedia(ctx, core.MediaScreen, true))
	screen := f.devices.track(core.MediaScreen)
	assert.Same(t, screen, peer.track(webrtc.RTPCodecTypeVideo))
	assert.Len(t, sentOf[protocol.Signal](f.conn), 1, "no renegotiation")

	// The OS stops the capture.
	screen.end()
	assert.Eventually(t, func() bool { return !f.session.Snapshot().Media.Screen }, time.Second, 5*time.Millisecond)
	assert.Same(t, cam, peer.track(webrtc.RTPCodecTypeVideo))
	assert.Equal(t, 1, f.devices.releases(core.MediaScreen))
}

func TestMediaPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)
	f.devices.mu.Lock()
	f.devices.deny = true
	f.devices.mu.Unlock()

	err := f.session.SetMedia(context.Background(), core.MediaVideo, true)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.False(t, f.session.Snapshot().Media.Video)
}

func TestCaptionsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)
	assert.ErrorIs(t, f.session.SetCaptions(true), domain.ErrDeviceUnavailable)
	assert.False(t, f.session.Snapshot().Media.Captions)
}

func TestRecordingTimer(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	require.NoError(t, f.session.SetRecording(true))
	assert.Eventually(t, func() bool {
		f.clock.Advance(time.Second)
		return f.session.Snapshot().Media.RecordingElapsed >= 3*time.Second
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.session.SetRecording(false))
	stopped := f.session.Snapshot().Media.RecordingElapsed
	f.clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, f.session.Snapshot().Media.RecordingElapsed)
}

func TestKickedEndsSession(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)
	require.NoError(t, f.session.SetMedia(context.Background(), core.MediaAudio, true))

	f.conn.emit(protocol.KickUser{TargetID: selfID})
	select {
	case <-f.session.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not end")
	}

	st := f.session.Snapshot()
	assert.True(t, st.Terminated)
	assert.Equal(t, domain.StatusClosed, st.Status)
	assert.False(t, f.session.Lost())
	assert.Equal(t, 1, f.devices.releases(core.MediaAudio))
	assert.ErrorIs(t, f.session.SendChat("hi"), domain.ErrTerminated)
}

func TestConnectionLoss(t *testing.T) {
	f := newFixture(t)
	f.admit(t, domain.RoleViewer)

	f.conn.drop(errors.New("reset by peer"))
	<-f.session.Done()

	st := f.session.Snapshot()
	assert.True(t, f.session.Lost())
	assert.False(t, st.Terminated)
	assert.Equal(t, domain.StatusClosed, st.Status)
	assert.Equal(t, "reset by peer", st.LastError)
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	f.conn.emit(protocol.Waiting{})

	require.NoError(t, f.session.Leave())
	<-f.session.Done()
	leaves := sentOf[protocol.Leave](f.conn)
	require.Len(t, leaves, 1)
	assert.Equal(t, selfID, leaves[0].UserID)
	assert.True(t, f.session.Snapshot().Terminated)
	assert.ErrorIs(t, f.session.Leave(), domain.ErrTerminated)
}

func TestRunnerReconnects(t *testing.T) {
	sig := &fakeSignaler{}
	r := NewRunner(Deps{Signaler: sig, Peers: &fakePeers{peers: make(map[domain.UserID]*fakePeer)}},
		Options{MeetingID: "abc", Credential: cred},
		BackoffPolicy{MaxAttempts: 3, Backoff: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return sig.opened() == 1 && r.Current() != nil }, time.Second, 5*time.Millisecond)
	first := r.Current()
	sig.last().drop(errors.New("gone"))

	require.Eventually(t, func() bool { return sig.opened() == 2 && r.Current() != first }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerGivesUp(t *testing.T) {
	sig := &fakeSignaler{}
	r := NewRunner(Deps{Signaler: sig, Peers: &fakePeers{peers: make(map[domain.UserID]*fakePeer)}},
		Options{MeetingID: "abc", Credential: cred}, nil)

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background()) }()
	require.Eventually(t, func() bool { return r.Current() != nil }, time.Second, 5*time.Millisecond)
	sig.last().drop(nil)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, domain.ErrNotOpen)
	case <-time.After(time.Second):
		t.Fatal("runner did not give up")
	}
	assert.Equal(t, 1, sig.opened())
}

func TestRunnerStopsWhenMeetingEnds(t *testing.T) {
	sig := &fakeSignaler{}
	r := NewRunner(Deps{Signaler: sig, Peers: &fakePeers{peers: make(map[domain.UserID]*fakePeer)}},
		Options{MeetingID: "abc", Credential: cred}, BackoffPolicy{Backoff: time.Millisecond})

	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background()) }()
	require.Eventually(t, func() bool { return r.Current() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Current().Leave())

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner kept going after leave")
	}
	assert.Equal(t, 1, sig.opened())
}
