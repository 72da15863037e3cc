package protocol

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetsync/internal/domain"
)

func TestDecodeJoinAcceptsStringIDs(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"JOIN","user_id":"42","name":"Ada","role":"host","settings":{"locked":true}}`))
	require.NoError(t, err)
	join, ok := ev.(Join)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, domain.UserID(42), join.UserID)
	assert.Equal(t, domain.RoleHost, join.Role)
	require.NotNil(t, join.Settings)
	assert.True(t, join.Settings.Locked)
}

func TestDecodeSignal(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"signal","sender":7,"payload":{"candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}}}`))
	require.NoError(t, err)
	sig := ev.(Signal)
	assert.Equal(t, domain.UserID(7), sig.Sender)
	require.NotNil(t, sig.Payload.Candidate)
	assert.Equal(t, "0", *sig.Payload.Candidate.SDPMid)

	ev, err = Decode([]byte(`{"type":"signal","sender":"8","payload":{"type":"offer","sdp":"v=0"}}`))
	require.NoError(t, err)
	sig = ev.(Signal)
	assert.Equal(t, domain.UserID(8), sig.Sender)
	assert.Equal(t, SignalOffer, sig.Payload.Type)
	assert.Nil(t, sig.Payload.Candidate)
}

func TestDecodeWhiteboardKeepsRaw(t *testing.T) {
	raw := `{"type":"WHITEBOARD","points":[1,2,3],"color":"#000"}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(ev.(Whiteboard).Raw))
}

func TestDecodeFailures(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"type":`,
		"missing type":  `{"text":"hi"}`,
		"unknown type":  `{"type":"MYSTERY"}`,
		"bad user id":   `{"type":"LEAVE","user_id":"abc"}`,
		"outbound only": `{"type":"ADMIN_ACTION","action":"KICK","target_id":1}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, domain.ErrProtocolDecode)
		})
	}

	_, err := Decode([]byte(`{"type":"MYSTERY"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestConsumed(t *testing.T) {
	assert.True(t, Consumed(TypeKickUser))
	assert.True(t, Consumed(TypePong))
	assert.False(t, Consumed(TypePing))
	assert.False(t, Consumed(TypeAdminAction))
}

func TestEncodeFlatEnvelope(t *testing.T) {
	data, err := Encode(Signal{Target: 9, Payload: SignalPayload{Type: SignalAnswer, SDP: "v=0"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"signal","target":9,"payload":{"type":"answer","sdp":"v=0"}}`, string(data))

	data, err = Encode(Ping{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PING"}`, string(data))

	mid := "0"
	data, err = Encode(Signal{Target: 9, Payload: SignalPayload{Candidate: &webrtc.ICECandidateInit{Candidate: "c", SDPMid: &mid}}})
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out))
	assert.JSONEq(t, `{"candidate":{"candidate":"c","sdpMid":"0","sdpMLineIndex":null,"usernameFragment":null}}`, string(out["payload"]))
}

func TestEncodeRejectsConsumedOnly(t *testing.T) {
	for _, ev := range []Event{Waiting{}, Join{UserID: 1}, KickUser{TargetID: 1}, Pong{}} {
		_, err := Encode(ev)
		assert.ErrorIs(t, err, ErrNotProducible, "%T", ev)
	}
}
