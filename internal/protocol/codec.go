package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dkeye/meetsync/internal/domain"
)

var (
	ErrUnknownType   = fmt.Errorf("%w: unknown event type", domain.ErrProtocolDecode)
	ErrNotProducible = errors.New("event type is not sent by clients")
	errMissingType   = fmt.Errorf("%w: missing type", domain.ErrProtocolDecode)
)

// inbound maps every consumed tag to a constructor of its variant.
var inbound = map[EventType]func() Event{
	TypeJoin:           func() Event { return &Join{} },
	TypeWaiting:        func() Event { return &Waiting{} },
	TypeAdmitted:       func() Event { return &Admitted{} },
	TypeWaitingUser:    func() Event { return &WaitingUser{} },
	TypeSettingsUpdate: func() Event { return &SettingsUpdate{} },
	TypeRoleUpdate:     func() Event { return &RoleUpdate{} },
	TypeKickUser:       func() Event { return &KickUser{} },
	TypeSignal:         func() Event { return &Signal{} },
	TypeLeave:          func() Event { return &Leave{} },
	TypeChat:           func() Event { return &Chat{} },
	TypeParticipants:   func() Event { return &Participants{} },
	TypeSubtitle:       func() Event { return &Subtitle{} },
	TypeHandRaise:      func() Event { return &HandRaise{} },
	TypeNoteUpdate:     func() Event { return &NoteUpdate{} },
	TypeCursorMove:     func() Event { return &CursorMove{} },
	TypePollCreate:     func() Event { return &PollCreate{} },
	TypePollVote:       func() Event { return &PollVote{} },
	TypeQAAsk:          func() Event { return &QAAsk{} },
	TypeQAUpvote:       func() Event { return &QAUpvote{} },
	TypeQADelete:       func() Event { return &QADelete{} },
	TypeReaction:       func() Event { return &Reaction{} },
	TypeConfetti:       func() Event { return &Confetti{} },
	TypeWhiteboard:     func() Event { return &Whiteboard{} },
	TypeError:          func() Event { return &Error{} },
	TypePong:           func() Event { return &Pong{} },
}

var outbound = map[EventType]struct{}{
	TypePing:        {},
	TypeSignal:      {},
	TypeLeave:       {},
	TypeChat:        {},
	TypeHandRaise:   {},
	TypeNoteUpdate:  {},
	TypeCursorMove:  {},
	TypePollCreate:  {},
	TypePollVote:    {},
	TypeQAAsk:       {},
	TypeQAUpvote:    {},
	TypeQADelete:    {},
	TypeReaction:    {},
	TypeSubtitle:    {},
	TypeAdminUpdate: {},
	TypeAdminAction: {},
}

// Consumed reports whether t is part of the inbound event set.
func Consumed(t EventType) bool {
	_, ok := inbound[t]
	return ok
}

// Decode parses one inbound frame. Every failure wraps domain.ErrProtocolDecode.
func Decode(data []byte) (Event, error) {
	var env struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocolDecode, err)
	}
	if env.Type == "" {
		return nil, errMissingType
	}
	factory, ok := inbound[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
	ev := factory()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProtocolDecode, env.Type, err)
	}
	return deref(ev), nil
}

// Encode serializes an outbound event into the flat envelope the relay
// expects: the variant's fields plus "type".
func Encode(ev Event) ([]byte, error) {
	t := ev.EventType()
	if _, ok := outbound[t]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotProducible, t)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	fields["type"] = json.RawMessage(strconv.Quote(string(t)))
	return json.Marshal(fields)
}

// deref hands variants to consumers by value so a type switch on the
// concrete struct types is enough.
func deref(ev Event) Event {
	switch e := ev.(type) {
	case *Join:
		return *e
	case *Waiting:
		return *e
	case *Admitted:
		return *e
	case *WaitingUser:
		return *e
	case *SettingsUpdate:
		return *e
	case *RoleUpdate:
		return *e
	case *KickUser:
		return *e
	case *Signal:
		return *e
	case *Leave:
		return *e
	case *Chat:
		return *e
	case *Participants:
		return *e
	case *Subtitle:
		return *e
	case *HandRaise:
		return *e
	case *NoteUpdate:
		return *e
	case *CursorMove:
		return *e
	case *PollCreate:
		return *e
	case *PollVote:
		return *e
	case *QAAsk:
		return *e
	case *QAUpvote:
		return *e
	case *QADelete:
		return *e
	case *Reaction:
		return *e
	case *Confetti:
		return *e
	case *Whiteboard:
		return *e
	case *Error:
		return *e
	case *Pong:
		return *e
	}
	return ev
}
