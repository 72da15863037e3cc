package core

import (
	"encoding/json"

	"github.com/dkeye/meetsync/internal/domain"
)

// RemoteStream groups the inbound tracks of one peer link. The mesh owns
// the tracks; holders of a RemoteStream only display them.
type RemoteStream struct {
	Peer     domain.UserID
	StreamID string
	Tracks   []RemoteTrack
}

// WithTrack returns a copy with t added, replacing a track of the same id.
func (s RemoteStream) WithTrack(t RemoteTrack) RemoteStream {
	out := RemoteStream{Peer: s.Peer, StreamID: s.StreamID, Tracks: make([]RemoteTrack, 0, len(s.Tracks)+1)}
	if out.StreamID == "" {
		out.StreamID = t.StreamID()
	}
	for _, existing := range s.Tracks {
		if existing.ID() != t.ID() {
			out.Tracks = append(out.Tracks, existing)
		}
	}
	out.Tracks = append(out.Tracks, t)
	return out
}

func (s RemoteStream) MarshalJSON() ([]byte, error) {
	type track struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	view := struct {
		Peer     domain.UserID `json:"peer"`
		StreamID string        `json:"stream_id"`
		Tracks   []track       `json:"tracks"`
	}{Peer: s.Peer, StreamID: s.StreamID, Tracks: make([]track, 0, len(s.Tracks))}
	for _, t := range s.Tracks {
		view.Tracks = append(view.Tracks, track{ID: t.ID(), Kind: t.Kind().String()})
	}
	return json.Marshal(view)
}
