package store

import (
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

// Effect is a side effect requested by a state transition. The store never
// performs it; the session loop does.
type Effect interface {
	effect()
}

// CallPeer asks the mesh to initiate a call to Peer.
type CallPeer struct{ Peer domain.UserID }

// ClosePeer asks the mesh to tear down the link to Peer.
type ClosePeer struct{ Peer domain.UserID }

// RouteSignal hands a negotiation message to the mesh.
type RouteSignal struct{ Signal protocol.Signal }

// Terminate ends the session: stop all media, then close the connection.
type Terminate struct{ Reason string }

func (CallPeer) effect()    {}
func (ClosePeer) effect()   {}
func (RouteSignal) effect() {}
func (Terminate) effect()   {}
