package core

import (
	"context"

	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

// Frame is a raw signaling payload.
type Frame []byte

// SignalConnection abstracts the meeting signaling transport.
// Owned by the adapter; the owner must Close() it.
type SignalConnection interface {
	// Send is best effort: the event is dropped unless the channel is open.
	Send(protocol.Event) bool
	// OnEvent registers the inbound handler. Reading starts once it is set.
	OnEvent(func(protocol.Event))
	// OnClose is invoked once when the transport goes down for any reason.
	OnClose(func(error))
	Status() domain.ConnStatus
	Close()
}

// Signaler opens signaling connections.
type Signaler interface {
	Open(ctx context.Context, meetingID domain.MeetingID, cred Credential) (SignalConnection, error)
}
