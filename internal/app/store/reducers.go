package store

import (
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

func (s *Store) onJoin(ev protocol.Event) []Effect {
	e := ev.(protocol.Join)
	if e.UserID != 0 && e.UserID != s.self() {
		if s.state.Media.Active() {
			return []Effect{CallPeer{Peer: e.UserID}}
		}
		return nil
	}
	if e.Role.Valid() {
		s.setSelfRole(e.Role)
	}
	if e.Settings != nil {
		s.state.Settings = *e.Settings
	}
	s.state.Admitted = true
	return nil
}

func (s *Store) onWaiting(protocol.Event) []Effect {
	s.state.Admitted = false
	return nil
}

func (s *Store) onAdmitted(protocol.Event) []Effect {
	s.state.Admitted = true
	return nil
}

func (s *Store) onWaitingUser(ev protocol.Event) []Effect {
	e := ev.(protocol.WaitingUser)
	if !s.state.IsHost() {
		return nil
	}
	for _, w := range s.state.WaitingQueue {
		if w.ID == e.UserID {
			return nil
		}
	}
	s.state.WaitingQueue = append(s.state.WaitingQueue, domain.WaitingUser{ID: e.UserID, Name: e.Name})
	return nil
}

func (s *Store) onSettingsUpdate(ev protocol.Event) []Effect {
	s.state.Settings = ev.(protocol.SettingsUpdate).Settings
	return nil
}

func (s *Store) onRoleUpdate(ev protocol.Event) []Effect {
	e := ev.(protocol.RoleUpdate)
	if !e.Role.Valid() {
		return nil
	}
	if p, ok := s.state.Participants[e.UserID]; ok {
		p.Role = e.Role
		s.state.Participants[e.UserID] = p
	}
	if e.UserID == s.self() {
		s.setSelfRole(e.Role)
	}
	return nil
}

func (s *Store) setSelfRole(role domain.Role) {
	s.state.Self.Role = role
	if role != domain.RoleHost {
		s.state.WaitingQueue = nil
	}
}

func (s *Store) onKickUser(ev protocol.Event) []Effect {
	e := ev.(protocol.KickUser)
	if e.TargetID == s.self() {
		reason := e.Reason
		if reason == "" {
			reason = "removed by host"
		}
		s.state.Terminated = true
		s.state.TerminateReason = reason
		return []Effect{Terminate{Reason: reason}}
	}
	delete(s.state.Participants, e.TargetID)
	s.forgetPeer(e.TargetID)
	return []Effect{ClosePeer{Peer: e.TargetID}}
}

func (s *Store) onSignal(ev protocol.Event) []Effect {
	return []Effect{RouteSignal{Signal: ev.(protocol.Signal)}}
}

func (s *Store) onLeave(ev protocol.Event) []Effect {
	e := ev.(protocol.Leave)
	if e.UserID == 0 || e.UserID == s.self() {
		return nil
	}
	s.forgetPeer(e.UserID)
	return []Effect{ClosePeer{Peer: e.UserID}}
}

// forgetPeer drops the per-peer ephemeral state of a departed participant.
func (s *Store) forgetPeer(id domain.UserID) {
	delete(s.state.Cursors, id)
	delete(s.state.Streams, id)
	s.state.Hands = slices.DeleteFunc(s.state.Hands, func(h domain.HandRaise) bool { return h.ID == id })
}

func (s *Store) onChat(ev protocol.Event) []Effect {
	e := ev.(protocol.Chat)
	sender := e.SenderName
	if sender == "" {
		sender = e.Sender
	}
	s.state.Chat = trimFront(append(s.state.Chat, domain.ChatMessage{
		Sender: sender,
		Text:   e.Text,
		At:     s.clock.Now(),
	}), ChatWindow)
	return nil
}

func (s *Store) onParticipants(ev protocol.Event) []Effect {
	e := ev.(protocol.Participants)
	next := make(map[domain.UserID]domain.Participant, len(e.Participants))
	for _, p := range e.Participants {
		next[p.ID] = p
	}
	s.state.Participants = next
	return nil
}

func (s *Store) onSubtitle(ev protocol.Event) []Effect {
	e := ev.(protocol.Subtitle)
	// Local captions are appended by the caption pipeline; drop the relay echo.
	if e.UserID != 0 && e.UserID == s.self() {
		return nil
	}
	ts := s.clock.Now()
	if e.Timestamp > 0 {
		ts = time.UnixMilli(e.Timestamp)
	}
	// Peers relay only committed results, so every remote entry is final
	// whatever its flag says.
	s.state.Captions = trimFront(append(s.state.Captions, domain.CaptionEntry{
		Speaker:   e.Speaker,
		Text:      e.Text,
		Timestamp: ts,
		Final:     true,
	}), CaptionWindow)
	return nil
}

func (s *Store) onHandRaise(ev protocol.Event) []Effect {
	e := ev.(protocol.HandRaise)
	idx := slices.IndexFunc(s.state.Hands, func(h domain.HandRaise) bool { return h.ID == e.UserID })
	switch {
	case e.Raised && idx < 0:
		s.state.Hands = append(s.state.Hands, domain.HandRaise{ID: e.UserID, Name: e.Name})
	case !e.Raised && idx >= 0:
		s.state.Hands = slices.Delete(s.state.Hands, idx, idx+1)
	}
	return nil
}

func (s *Store) onNoteUpdate(ev protocol.Event) []Effect {
	e := ev.(protocol.NoteUpdate)
	if e.Sender == s.self() {
		return nil
	}
	s.state.Note = e.Content
	return nil
}

func (s *Store) onCursorMove(ev protocol.Event) []Effect {
	e := ev.(protocol.CursorMove)
	if e.Sender == s.self() {
		return nil
	}
	s.state.Cursors[e.Sender] = domain.Cursor{X: e.X, Y: e.Y, Color: e.Color, Name: e.Name}
	return nil
}

func (s *Store) onPollCreate(ev protocol.Event) []Effect {
	e := ev.(protocol.PollCreate)
	s.state.Poll = &domain.Poll{
		Question: e.Question,
		Options:  slices.Clone(e.Options),
		Votes:    make([]int, len(e.Options)),
	}
	return nil
}

func (s *Store) onPollVote(ev protocol.Event) []Effect {
	e := ev.(protocol.PollVote)
	poll := s.state.Poll
	if poll == nil || e.OptionIndex < 0 || e.OptionIndex >= len(poll.Votes) {
		log.Debug().Str("module", "store").Int("option", e.OptionIndex).Msg("poll vote out of range")
		return nil
	}
	poll.Votes[e.OptionIndex]++
	return nil
}

func (s *Store) onQAAsk(ev protocol.Event) []Effect {
	e := ev.(protocol.QAAsk)
	if e.ID == "" || s.questionIndex(e.ID) >= 0 {
		return nil
	}
	s.state.Questions = append(s.state.Questions, domain.Question{ID: e.ID, Text: e.Text, Sender: e.Sender})
	return nil
}

func (s *Store) onQAUpvote(ev protocol.Event) []Effect {
	e := ev.(protocol.QAUpvote)
	i := s.questionIndex(e.ID)
	if i < 0 {
		return nil
	}
	q := &s.state.Questions[i]
	q.Upvotes++
	if e.UserID == s.self() {
		q.UpvotedMe = true
	}
	return nil
}

func (s *Store) onQADelete(ev protocol.Event) []Effect {
	if i := s.questionIndex(ev.(protocol.QADelete).ID); i >= 0 {
		s.state.Questions = slices.Delete(s.state.Questions, i, i+1)
	}
	return nil
}

func (s *Store) questionIndex(id string) int {
	return slices.IndexFunc(s.state.Questions, func(q domain.Question) bool { return q.ID == id })
}

func (s *Store) onReaction(ev protocol.Event) []Effect {
	e := ev.(protocol.Reaction)
	s.state.Reactions = trimFront(append(s.state.Reactions, domain.Reaction{
		Emoji:  e.Emoji,
		Sender: e.SenderName,
		At:     s.clock.Now(),
	}), ReactionWindow)
	return nil
}

func (s *Store) onConfetti(protocol.Event) []Effect {
	s.state.Confetti++
	return nil
}

func (s *Store) onWhiteboard(ev protocol.Event) []Effect {
	s.state.Whiteboard = trimFront(append(s.state.Whiteboard, ev.(protocol.Whiteboard).Raw), WhiteboardWindow)
	return nil
}

func (s *Store) onError(ev protocol.Event) []Effect {
	s.state.LastError = ev.(protocol.Error).Message
	return nil
}
