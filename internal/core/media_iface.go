package core

import (
	"context"

	"github.com/dkeye/meetsync/internal/domain"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the negotiation primitive behind one peer link.
type PeerConnection interface {
	// ReplaceTrack sets the outbound track of the given kind without
	// renegotiation. A nil track detaches the sender's source.
	ReplaceTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error
	// CreateOffer creates and applies a local offer.
	CreateOffer() (webrtc.SessionDescription, error)
	// CreateAnswer creates and applies a local answer.
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when a remote track arrives.
	OnTrack(func(RemoteTrack))
	// OnClosed sets a callback for transport failure or closure.
	OnClosed(func())
	Close() error
}

// PeerFactory creates one PeerConnection per remote participant.
type PeerFactory interface {
	NewPeer(peer domain.UserID) (PeerConnection, error)
}

// RemoteTrack is the read-only view of an inbound track.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaScreen MediaKind = "screen"
)

// LocalTrack is an acquired local media track. Several consumers may hold
// it; Stop releases the device and is only called by its acquirer.
type LocalTrack interface {
	webrtc.TrackLocal
	SetEnabled(bool)
	Enabled() bool
	// OnEnded fires when the source stops on its own (e.g. screen share
	// ended by the OS).
	OnEnded(func())
	Stop()
}

// MediaDevices acquires camera, microphone and screen capture.
// Failures wrap domain.ErrPermissionDenied or domain.ErrDeviceUnavailable.
type MediaDevices interface {
	Acquire(ctx context.Context, kind MediaKind) (LocalTrack, error)
	Release(track LocalTrack)
}
