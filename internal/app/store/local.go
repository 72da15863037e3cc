package store

import (
	"slices"
	"time"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

// SetStatus records the signaling connection status.
func (s *Store) SetStatus(status domain.ConnStatus) { s.state.Status = status }

func (s *Store) SetLastError(msg string) { s.state.LastError = msg }

func (s *Store) SetMedia(m MediaState) { s.state.Media = m }

func (s *Store) Media() MediaState { return s.state.Media }

// SetNote overwrites the shared note with a local edit.
func (s *Store) SetNote(content string) { s.state.Note = content }

// DequeueWaiting removes a user from the host waiting queue once admitted.
func (s *Store) DequeueWaiting(id domain.UserID) {
	s.state.WaitingQueue = slices.DeleteFunc(s.state.WaitingQueue, func(w domain.WaitingUser) bool { return w.ID == id })
}

// SetRemoteStream publishes the stream of a connected peer. A second call
// for the same peer replaces the first.
func (s *Store) SetRemoteStream(stream core.RemoteStream) {
	s.state.Streams[stream.Peer] = stream
}

func (s *Store) RemoveRemoteStream(peer domain.UserID) { delete(s.state.Streams, peer) }

// UpsertLocalCaption records a caption produced by the local speaker. The
// most recent provisional local entry is replaced rather than appended to;
// a final entry commits it.
func (s *Store) UpsertLocalCaption(entry domain.CaptionEntry) {
	entry.Local = true
	captions := s.state.Captions
	for i := len(captions) - 1; i >= 0; i-- {
		if captions[i].Local && !captions[i].Final {
			captions[i] = entry
			return
		}
	}
	s.state.Captions = trimFront(append(captions, entry), CaptionWindow)
}

// DropProvisionalCaption removes a pending interim local entry, used when
// the recognizer stops mid-utterance.
func (s *Store) DropProvisionalCaption() {
	s.state.Captions = slices.DeleteFunc(s.state.Captions, func(c domain.CaptionEntry) bool { return c.Local && !c.Final })
}

func (s *Store) SetRecordingElapsed(d time.Duration) { s.state.Media.RecordingElapsed = d }

// Terminate ends the session locally, e.g. on leave.
func (s *Store) Terminate(reason string) {
	s.state.Terminated = true
	s.state.TerminateReason = reason
}

// Transcript exports final captions in the backend's transcript shape.
// Times are seconds relative to the first exported caption.
func (s *Store) Transcript() []domain.TranscriptEntry {
	finals := make([]domain.CaptionEntry, 0, len(s.state.Captions))
	for _, c := range s.state.Captions {
		if c.Final {
			finals = append(finals, c)
		}
	}
	out := make([]domain.TranscriptEntry, 0, len(finals))
	if len(finals) == 0 {
		return out
	}
	origin := finals[0].Timestamp
	for i, c := range finals {
		start := c.Timestamp.Sub(origin).Seconds()
		end := start + 5.0
		if i+1 < len(finals) {
			if next := finals[i+1].Timestamp.Sub(origin).Seconds(); next > start {
				end = next
			}
		}
		out = append(out, domain.TranscriptEntry{
			Speaker:    c.Speaker,
			Text:       c.Text,
			StartTime:  start,
			EndTime:    end,
			Confidence: 1.0,
		})
	}
	return out
}
