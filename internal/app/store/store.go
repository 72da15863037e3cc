// Package store holds the meeting state and folds signaling events into it.
//
// Store is not safe for concurrent use: it is owned by the session event
// loop, and presentation code reads copies returned by Snapshot.
package store

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

type reducer func(s *Store, ev protocol.Event) []Effect

// reducers is keyed by the same tags as the protocol decode table; PONG is
// accepted and ignored.
var reducers = map[protocol.EventType]reducer{
	protocol.TypeJoin:           (*Store).onJoin,
	protocol.TypeWaiting:        (*Store).onWaiting,
	protocol.TypeAdmitted:       (*Store).onAdmitted,
	protocol.TypeWaitingUser:    (*Store).onWaitingUser,
	protocol.TypeSettingsUpdate: (*Store).onSettingsUpdate,
	protocol.TypeRoleUpdate:     (*Store).onRoleUpdate,
	protocol.TypeKickUser:       (*Store).onKickUser,
	protocol.TypeSignal:         (*Store).onSignal,
	protocol.TypeLeave:          (*Store).onLeave,
	protocol.TypeChat:           (*Store).onChat,
	protocol.TypeParticipants:   (*Store).onParticipants,
	protocol.TypeSubtitle:       (*Store).onSubtitle,
	protocol.TypeHandRaise:      (*Store).onHandRaise,
	protocol.TypeNoteUpdate:     (*Store).onNoteUpdate,
	protocol.TypeCursorMove:     (*Store).onCursorMove,
	protocol.TypePollCreate:     (*Store).onPollCreate,
	protocol.TypePollVote:       (*Store).onPollVote,
	protocol.TypeQAAsk:          (*Store).onQAAsk,
	protocol.TypeQAUpvote:       (*Store).onQAUpvote,
	protocol.TypeQADelete:       (*Store).onQADelete,
	protocol.TypeReaction:       (*Store).onReaction,
	protocol.TypeConfetti:       (*Store).onConfetti,
	protocol.TypeWhiteboard:     (*Store).onWhiteboard,
	protocol.TypeError:          (*Store).onError,
	protocol.TypePong:           func(*Store, protocol.Event) []Effect { return nil },
}

type Store struct {
	state State
	clock clockwork.Clock
}

func New(meetingID domain.MeetingID, self domain.LocalUser, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock: clock,
		state: State{
			MeetingID:    meetingID,
			Self:         self.Participant(domain.RoleViewer),
			Status:       domain.StatusConnecting,
			Participants: make(map[domain.UserID]domain.Participant),
			Cursors:      make(map[domain.UserID]domain.Cursor),
			Streams:      make(map[domain.UserID]core.RemoteStream),
		},
	}
}

// Apply folds one inbound event into the state and returns the effects the
// caller has to carry out. Once terminated, every event is ignored.
func (s *Store) Apply(ev protocol.Event) []Effect {
	if s.state.Terminated {
		return nil
	}
	r, ok := reducers[ev.EventType()]
	if !ok {
		log.Warn().Str("module", "store").Str("type", string(ev.EventType())).Msg("no reducer for event")
		return nil
	}
	return r(s, ev)
}

// Snapshot returns a deep copy safe to hand out of the event loop.
func (s *Store) Snapshot() State { return s.state.clone() }

// View exposes the live state to the owning loop without copying.
func (s *Store) View() *State { return &s.state }

func (s *Store) self() domain.UserID { return s.state.Self.ID }
