package store

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

const (
	CaptionWindow    = 50
	ChatWindow       = 200
	ReactionWindow   = 20
	WhiteboardWindow = 500
)

// MediaState mirrors which local media the user has switched on.
type MediaState struct {
	Audio            bool          `json:"audio"`
	Video            bool          `json:"video"`
	Screen           bool          `json:"screen"`
	Captions         bool          `json:"captions"`
	Recording        bool          `json:"recording"`
	RecordingElapsed time.Duration `json:"recording_elapsed"`
}

// Active reports whether any outbound media is flowing.
func (m MediaState) Active() bool { return m.Audio || m.Video || m.Screen }

// State is the local view of one meeting session.
type State struct {
	MeetingID       domain.MeetingID                     `json:"meeting_id"`
	Self            domain.Participant                   `json:"self"`
	Status          domain.ConnStatus                    `json:"status"`
	Admitted        bool                                 `json:"admitted"`
	Terminated      bool                                 `json:"terminated"`
	TerminateReason string                               `json:"terminate_reason,omitempty"`
	Settings        domain.AdminSettings                 `json:"settings"`
	Participants    map[domain.UserID]domain.Participant `json:"participants"`
	WaitingQueue    []domain.WaitingUser                 `json:"waiting_queue"`
	Poll            *domain.Poll                         `json:"poll,omitempty"`
	Questions       []domain.Question                    `json:"questions"`
	Hands           []domain.HandRaise                   `json:"hands"`
	Note            string                               `json:"note"`
	Cursors         map[domain.UserID]domain.Cursor      `json:"cursors"`
	Captions        []domain.CaptionEntry                `json:"captions"`
	Chat            []domain.ChatMessage                 `json:"chat"`
	Reactions       []domain.Reaction                    `json:"reactions"`
	Confetti        int                                  `json:"confetti"`
	Whiteboard      []json.RawMessage                    `json:"whiteboard"`
	LastError       string                               `json:"last_error,omitempty"`
	Streams         map[domain.UserID]core.RemoteStream  `json:"streams"`
	Media           MediaState                           `json:"media"`
}

// IsHost reports whether the local participant currently holds the host role.
func (s *State) IsHost() bool { return s.Self.Role == domain.RoleHost }

// Interactive reports whether user intents may be dispatched.
func (s *State) Interactive() bool { return s.Admitted && !s.Terminated }

func (s *State) clone() State {
	out := *s
	out.Participants = maps.Clone(s.Participants)
	out.WaitingQueue = slices.Clone(s.WaitingQueue)
	if s.Poll != nil {
		p := *s.Poll
		p.Options = slices.Clone(s.Poll.Options)
		p.Votes = slices.Clone(s.Poll.Votes)
		out.Poll = &p
	}
	out.Questions = slices.Clone(s.Questions)
	out.Hands = slices.Clone(s.Hands)
	out.Cursors = maps.Clone(s.Cursors)
	out.Captions = slices.Clone(s.Captions)
	out.Chat = slices.Clone(s.Chat)
	out.Reactions = slices.Clone(s.Reactions)
	out.Whiteboard = slices.Clone(s.Whiteboard)
	out.Streams = maps.Clone(s.Streams)
	return out
}

// trimFront keeps the last n elements.
func trimFront[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return slices.Clone(xs[len(xs)-n:])
}
