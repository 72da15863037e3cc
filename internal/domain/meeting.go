package domain

import "time"

type ConnStatus string

const (
	StatusConnecting ConnStatus = "connecting"
	StatusOpen       ConnStatus = "open"
	StatusClosed     ConnStatus = "closed"
)

type MeetingID string

type AdminSettings struct {
	Locked      bool   `json:"locked"`
	WaitingRoom bool   `json:"waiting_room"`
	Password    string `json:"password,omitempty"`
}

type Poll struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Votes    []int    `json:"votes"`
}

type Question struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Upvotes   int    `json:"upvotes"`
	UpvotedMe bool   `json:"upvoted"`
}

type HandRaise struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

type WaitingUser struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

type CaptionEntry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Final     bool      `json:"final"`
	Local     bool      `json:"local"`
}

type Cursor struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Name  string  `json:"name"`
}

type ChatMessage struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

type Reaction struct {
	Emoji  string    `json:"emoji"`
	Sender string    `json:"sender"`
	At     time.Time `json:"at"`
}

// TranscriptEntry is the export shape accepted by the meeting backend's
// save-transcript endpoint.
type TranscriptEntry struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Confidence float64 `json:"confidence"`
}
