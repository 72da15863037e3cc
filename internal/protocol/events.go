// Package protocol defines the signaling wire format: a JSON envelope
// discriminated by its "type" field and the closed set of event variants
// carried inside it.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/meetsync/internal/domain"
	"github.com/pion/webrtc/v4"
)

type EventType string

const (
	TypeJoin           EventType = "JOIN"
	TypeWaiting        EventType = "WAITING"
	TypeAdmitted       EventType = "ADMITTED"
	TypeWaitingUser    EventType = "WAITING_USER"
	TypeSettingsUpdate EventType = "SETTINGS_UPDATE"
	TypeRoleUpdate     EventType = "ROLE_UPDATE"
	TypeKickUser       EventType = "KICK_USER"
	TypeSignal         EventType = "signal"
	TypeLeave          EventType = "LEAVE"
	TypeChat           EventType = "CHAT"
	TypeParticipants   EventType = "participants"
	TypeSubtitle       EventType = "SUBTITLE"
	TypeHandRaise      EventType = "HAND_RAISE"
	TypeNoteUpdate     EventType = "NOTE_UPDATE"
	TypeCursorMove     EventType = "CURSOR_MOVE"
	TypePollCreate     EventType = "POLL_CREATE"
	TypePollVote       EventType = "POLL_VOTE"
	TypeQAAsk          EventType = "QA_ASK"
	TypeQAUpvote       EventType = "QA_UPVOTE"
	TypeQADelete       EventType = "QA_DELETE"
	TypeReaction       EventType = "REACTION"
	TypeConfetti       EventType = "CONFETTI"
	TypeWhiteboard     EventType = "WHITEBOARD"
	TypeError          EventType = "ERROR"
	TypePing           EventType = "PING"
	TypePong           EventType = "PONG"
	TypeAdminUpdate    EventType = "ADMIN_UPDATE"
	TypeAdminAction    EventType = "ADMIN_ACTION"
)

// Event is one variant of the signaling message set.
type Event interface {
	EventType() EventType
}

type Join struct {
	UserID   domain.UserID         `json:"user_id"`
	Name     string                `json:"name,omitempty"`
	Role     domain.Role           `json:"role,omitempty"`
	Settings *domain.AdminSettings `json:"settings,omitempty"`
}

type Waiting struct{}

type Admitted struct{}

type WaitingUser struct {
	UserID domain.UserID `json:"user_id"`
	Name   string        `json:"name"`
}

type SettingsUpdate struct {
	Settings domain.AdminSettings `json:"settings"`
}

type RoleUpdate struct {
	UserID domain.UserID `json:"user_id"`
	Role   domain.Role   `json:"role"`
}

type KickUser struct {
	TargetID domain.UserID `json:"target_id"`
	Reason   string        `json:"reason,omitempty"`
}

// SignalPayload is relayed verbatim by the server. It is either a session
// description (Type + SDP) or a trickled ICE candidate.
type SignalPayload struct {
	Type      string                   `json:"type,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

const (
	SignalOffer  = "offer"
	SignalAnswer = "answer"
)

// Signal is addressed by Target on the way out and stamped with Sender by
// the relay on the way in.
type Signal struct {
	Sender  domain.UserID `json:"sender,omitempty"`
	Target  domain.UserID `json:"target,omitempty"`
	Payload SignalPayload `json:"payload"`
}

type Leave struct {
	UserID domain.UserID `json:"user_id,omitempty"`
}

type Chat struct {
	Sender     string `json:"sender,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Text       string `json:"text"`
}

type Participants struct {
	Participants []domain.Participant `json:"participants"`
}

type Subtitle struct {
	UserID    domain.UserID `json:"user_id,omitempty"`
	Speaker   string        `json:"speaker"`
	Text      string        `json:"text"`
	Timestamp int64         `json:"timestamp"` // unix millis
	Final     bool          `json:"final"`
}

type HandRaise struct {
	UserID domain.UserID `json:"user_id"`
	Name   string        `json:"name,omitempty"`
	Raised bool          `json:"raised"`
}

type NoteUpdate struct {
	Sender  domain.UserID `json:"sender"`
	Content string        `json:"content"`
}

type CursorMove struct {
	Sender domain.UserID `json:"sender"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	Color  string        `json:"color,omitempty"`
	Name   string        `json:"name,omitempty"`
}

type PollCreate struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type PollVote struct {
	OptionIndex int `json:"option_index"`
}

type QAAsk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Sender   string        `json:"sender"`
	SenderID domain.UserID `json:"sender_id,omitempty"`
}

type QAUpvote struct {
	ID     string        `json:"id"`
	UserID domain.UserID `json:"user_id"`
}

type QADelete struct {
	ID string `json:"id"`
}

type Reaction struct {
	Emoji      string `json:"emoji"`
	SenderName string `json:"sender_name,omitempty"`
}

type Confetti struct {
	SenderName string `json:"sender_name,omitempty"`
}

// Whiteboard strokes are opaque to the engine; the whole message is kept.
type Whiteboard struct {
	Raw json.RawMessage `json:"-"`
}

func (w *Whiteboard) UnmarshalJSON(data []byte) error {
	w.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type Error struct {
	Message string `json:"message"`
}

type Ping struct{}

type Pong struct{}

type AdminUpdate struct {
	Settings domain.AdminSettings `json:"settings"`
}

type AdminActionKind string

const (
	AdminKick    AdminActionKind = "KICK"
	AdminSetRole AdminActionKind = "SET_ROLE"
	AdminAdmit   AdminActionKind = "ADMIT"
)

type AdminAction struct {
	Action   AdminActionKind `json:"action"`
	TargetID domain.UserID   `json:"target_id"`
	Role     domain.Role     `json:"role,omitempty"`
}

func (Join) EventType() EventType           { return TypeJoin }
func (Waiting) EventType() EventType        { return TypeWaiting }
func (Admitted) EventType() EventType       { return TypeAdmitted }
func (WaitingUser) EventType() EventType    { return TypeWaitingUser }
func (SettingsUpdate) EventType() EventType { return TypeSettingsUpdate }
func (RoleUpdate) EventType() EventType     { return TypeRoleUpdate }
func (KickUser) EventType() EventType       { return TypeKickUser }
func (Signal) EventType() EventType         { return TypeSignal }
func (Leave) EventType() EventType          { return TypeLeave }
func (Chat) EventType() EventType           { return TypeChat }
func (Participants) EventType() EventType   { return TypeParticipants }
func (Subtitle) EventType() EventType       { return TypeSubtitle }
func (HandRaise) EventType() EventType      { return TypeHandRaise }
func (NoteUpdate) EventType() EventType     { return TypeNoteUpdate }
func (CursorMove) EventType() EventType     { return TypeCursorMove }
func (PollCreate) EventType() EventType     { return TypePollCreate }
func (PollVote) EventType() EventType       { return TypePollVote }
func (QAAsk) EventType() EventType          { return TypeQAAsk }
func (QAUpvote) EventType() EventType       { return TypeQAUpvote }
func (QADelete) EventType() EventType       { return TypeQADelete }
func (Reaction) EventType() EventType       { return TypeReaction }
func (Confetti) EventType() EventType       { return TypeConfetti }
func (Whiteboard) EventType() EventType     { return TypeWhiteboard }
func (Error) EventType() EventType          { return TypeError }
func (Ping) EventType() EventType           { return TypePing }
func (Pong) EventType() EventType           { return TypePong }
func (AdminUpdate) EventType() EventType    { return TypeAdminUpdate }
func (AdminAction) EventType() EventType    { return TypeAdminAction }
