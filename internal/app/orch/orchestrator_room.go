package orch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

// guard rejects intents while waiting for admission or after the end.
func (s *Session) guard() error {
	v := s.store.View()
	if v.Terminated {
		return domain.ErrTerminated
	}
	if !v.Admitted {
		return domain.ErrNotAdmitted
	}
	return nil
}

func (s *Session) hostGuard() error {
	if err := s.guard(); err != nil {
		return err
	}
	if !s.store.View().IsHost() {
		return domain.ErrNotHost
	}
	return nil
}

func (s *Session) send(ev protocol.Event) bool {
	if !s.conn.Send(ev) {
		s.logger.Debug().Str("type", string(ev.EventType())).Msg("outbound dropped")
		return false
	}
	return true
}

// publish sends ev and folds it into the local store. The relay does not
// echo these back to their sender.
func (s *Session) publish(ev protocol.Event) {
	s.send(ev)
	s.dispatch(ev)
}

func (s *Session) self() domain.Participant { return s.store.View().Self }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidIntent}, args...)...)
}

// SendChat broadcasts a chat message. The relay echoes chat to everyone,
// the sender included, so it is not recorded locally.
func (s *Session) SendChat(text string) error {
	text = strings.TrimSpace(text)
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		if text == "" {
			return invalid("empty chat message")
		}
		if !s.send(protocol.Chat{Sender: s.self().Name, SenderName: s.self().Name, Text: text}) {
			return domain.ErrNotOpen
		}
		return nil
	})
}

func (s *Session) React(emoji string) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		if emoji == "" {
			return invalid("empty reaction")
		}
		s.publish(protocol.Reaction{Emoji: emoji, SenderName: s.self().Name})
		return nil
	})
}

func (s *Session) SetHandRaised(raised bool) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		me := s.self()
		s.publish(protocol.HandRaise{UserID: me.ID, Name: me.Name, Raised: raised})
		return nil
	})
}

// UpdateNote replaces the shared note.
func (s *Session) UpdateNote(content string) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		s.send(protocol.NoteUpdate{Sender: s.self().ID, Content: content})
		s.store.SetNote(content)
		return nil
	})
}

// MoveCursor shares the local pointer. Moves over the configured rate are
// dropped.
func (s *Session) MoveCursor(x, y float64, color string) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		if !s.cursors.Allow() {
			return nil
		}
		me := s.self()
		s.send(protocol.CursorMove{Sender: me.ID, X: x, Y: y, Color: color, Name: me.Name})
		return nil
	})
}

// CreatePoll replaces the active poll for everyone.
func (s *Session) CreatePoll(question string, options []string) error {
	question = strings.TrimSpace(question)
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		if question == "" {
			return invalid("empty poll question")
		}
		if len(options) < 2 || slices.Contains(options, "") {
			return invalid("a poll needs at least two non-empty options")
		}
		s.publish(protocol.PollCreate{Question: question, Options: slices.Clone(options)})
		return nil
	})
}

func (s *Session) VotePoll(option int) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		poll := s.store.View().Poll
		if poll == nil {
			return invalid("no active poll")
		}
		if option < 0 || option >= len(poll.Options) {
			return invalid("option %d out of range", option)
		}
		s.publish(protocol.PollVote{OptionIndex: option})
		return nil
	})
}

// AskQuestion posts a question and returns its id.
func (s *Session) AskQuestion(text string) (string, error) {
	text = strings.TrimSpace(text)
	id := uuid.NewString()
	err := s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		if text == "" {
			return invalid("empty question")
		}
		me := s.self()
		s.publish(protocol.QAAsk{ID: id, Text: text, Sender: me.Name, SenderID: me.ID})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpvoteQuestion upvotes once per question; repeats are ignored.
func (s *Session) UpvoteQuestion(id string) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		q, ok := s.question(id)
		if !ok {
			return invalid("unknown question %q", id)
		}
		if q.UpvotedMe {
			return nil
		}
		s.publish(protocol.QAUpvote{ID: id, UserID: s.self().ID})
		return nil
	})
}

func (s *Session) DeleteQuestion(id string) error {
	return s.call(func() error {
		if err := s.guard(); err != nil {
			return err
		}
		if _, ok := s.question(id); !ok {
			return invalid("unknown question %q", id)
		}
		s.publish(protocol.QADelete{ID: id})
		return nil
	})
}

func (s *Session) question(id string) (domain.Question, bool) {
	qs := s.store.View().Questions
	if i := slices.IndexFunc(qs, func(q domain.Question) bool { return q.ID == id }); i >= 0 {
		return qs[i], true
	}
	return domain.Question{}, false
}

// UpdateSettings asks the relay to change the meeting settings. The new
// value only takes effect when SETTINGS_UPDATE comes back.
func (s *Session) UpdateSettings(settings domain.AdminSettings) error {
	return s.call(func() error {
		if err := s.hostGuard(); err != nil {
			return err
		}
		if !s.send(protocol.AdminUpdate{Settings: settings}) {
			return domain.ErrNotOpen
		}
		return nil
	})
}

// Admin performs a host action on another participant.
func (s *Session) Admin(action protocol.AdminActionKind, target domain.UserID, role domain.Role) error {
	return s.call(func() error {
		if err := s.hostGuard(); err != nil {
			return err
		}
		if target == 0 || target == s.self().ID {
			return invalid("bad target %s", target)
		}
		switch action {
		case protocol.AdminKick, protocol.AdminAdmit:
			role = ""
		case protocol.AdminSetRole:
			if !role.Valid() {
				return invalid("unknown role %q", role)
			}
		default:
			return invalid("unknown admin action %q", action)
		}
		if !s.send(protocol.AdminAction{Action: action, TargetID: target, Role: role}) {
			return domain.ErrNotOpen
		}
		if action == protocol.AdminAdmit {
			s.store.DequeueWaiting(target)
		}
		return nil
	})
}

// Leave announces the departure and ends the session. It is allowed while
// waiting for admission.
func (s *Session) Leave() error {
	return s.call(func() error {
		if s.store.View().Terminated {
			return domain.ErrTerminated
		}
		s.send(protocol.Leave{UserID: s.self().ID})
		s.end("left the meeting", true)
		return nil
	})
}
