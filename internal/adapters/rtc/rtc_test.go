package rtc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

func TestWebRTCConfigDefaults(t *testing.T) {
	cfg := WebRTCConfig(nil)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, DefaultICEServers, cfg.ICEServers[0].URLs)

	cfg = WebRTCConfig([]string{"stun:example.org:3478"})
	assert.Equal(t, []string{"stun:example.org:3478"}, cfg.ICEServers[0].URLs)
}

func TestOfferAnswer(t *testing.T) {
	f, err := NewFactory(nil)
	require.NoError(t, err)

	caller, err := f.NewPeer(2)
	require.NoError(t, err)
	defer caller.Close()
	callee, err := f.NewPeer(1)
	require.NoError(t, err)
	defer callee.Close()

	offer, err := caller.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.True(t, strings.Contains(offer.SDP, "m=audio"))
	assert.True(t, strings.Contains(offer.SDP, "m=video"))

	require.NoError(t, callee.SetRemoteDescription(offer))
	answer, err := callee.CreateAnswer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	require.NoError(t, caller.SetRemoteDescription(answer))
}

func TestReplaceTrack(t *testing.T) {
	f, err := NewFactory(nil)
	require.NoError(t, err)
	pc, err := f.NewPeer(2)
	require.NoError(t, err)
	defer pc.Close()

	video, err := webrtc.NewTrackLocalStaticRTP(codecFor(core.MediaScreen), "screen", "local")
	require.NoError(t, err)
	assert.NoError(t, pc.ReplaceTrack(webrtc.RTPCodecTypeVideo, video))
	assert.Error(t, pc.ReplaceTrack(webrtc.RTPCodecTypeAudio, video), "kind mismatch")
	assert.NoError(t, pc.ReplaceTrack(webrtc.RTPCodecTypeVideo, nil))
}

func TestOwnerCloseDoesNotFireOnClosed(t *testing.T) {
	f, err := NewFactory(nil)
	require.NoError(t, err)
	pc, err := f.NewPeer(2)
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	pc.OnClosed(func() { fired <- struct{}{} })
	require.NoError(t, pc.Close())

	select {
	case <-fired:
		t.Fatal("OnClosed fired for owner close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDevicesUnavailable(t *testing.T) {
	d := NewDevices(map[core.MediaKind]Source{core.MediaAudio: {}})
	_, err := d.Acquire(context.Background(), core.MediaAudio)
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	_, err = d.Acquire(context.Background(), core.MediaVideo)
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestDevicesShareAndRelease(t *testing.T) {
	d := NewDevices(map[core.MediaKind]Source{core.MediaAudio: {Addr: "127.0.0.1:0"}})

	a, err := d.Acquire(context.Background(), core.MediaAudio)
	require.NoError(t, err)
	assert.Equal(t, webrtc.RTPCodecTypeAudio, a.Kind())
	assert.True(t, a.Enabled())

	b, err := d.Acquire(context.Background(), core.MediaAudio)
	require.NoError(t, err)
	assert.Same(t, a.(*OutTrack), b.(*OutTrack))

	d.Release(a)
	assert.Equal(t, TrackStateOk, a.(*OutTrack).GetState(), "still held by the second consumer")
	d.Release(b)
	assert.Equal(t, TrackStateEnded, a.(*OutTrack).GetState())
}

func TestIdleSourceEnds(t *testing.T) {
	d := NewDevices(map[core.MediaKind]Source{core.MediaScreen: {Addr: "127.0.0.1:0", Idle: 30 * time.Millisecond}})
	tr, err := d.Acquire(context.Background(), core.MediaScreen)
	require.NoError(t, err)

	ended := make(chan struct{})
	tr.OnEnded(func() { close(ended) })
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("idle source did not end")
	}
	assert.False(t, tr.Enabled())
}

func TestMuteIsSticky(t *testing.T) {
	track, err := webrtc.NewTrackLocalStaticRTP(codecFor(core.MediaAudio), "audio", "local")
	require.NoError(t, err)
	ot := NewOutTrack(track, nil)

	ot.SetEnabled(false)
	assert.Equal(t, TrackStateMuted, ot.GetState())
	ot.SetEnabled(true)
	assert.True(t, ot.Enabled())

	ot.Stop()
	ot.SetEnabled(true)
	assert.Equal(t, TrackStateEnded, ot.GetState(), "ended tracks cannot be re-enabled")
}
