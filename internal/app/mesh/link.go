package mesh

import (
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

type LinkState uint8

const (
	LinkIdle LinkState = iota
	LinkOffering
	LinkAnswering
	LinkConnected
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkOffering:
		return "offering"
	case LinkAnswering:
		return "answering"
	case LinkConnected:
		return "connected"
	case LinkClosed:
		return "closed"
	}
	return "unknown"
}

// Link is the negotiation state for one remote participant.
type Link struct {
	peer   domain.UserID
	pc     core.PeerConnection
	state  LinkState
	stream core.RemoteStream
}

func (l *Link) Peer() domain.UserID { return l.peer }

func (l *Link) State() LinkState { return l.state }

func (l *Link) hasMedia() bool { return len(l.stream.Tracks) > 0 }
