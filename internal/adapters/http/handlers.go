package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

const meetingKey = "meeting"

type handlers struct {
	current Current
}

func (h *handlers) requireSession(c *gin.Context) {
	m := h.current()
	if m == nil {
		failWith(c, errNoSession)
		return
	}
	c.Set(meetingKey, m)
	c.Next()
}

func meeting(c *gin.Context) Meeting {
	return c.MustGet(meetingKey).(Meeting)
}

// reply writes an empty success or the intent error.
func reply(c *gin.Context, err error) {
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusOK, nil)
}

type chatRequest struct {
	Text string `json:"text" binding:"required,max=4096"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=32"`
}

type handRequest struct {
	Raised *bool `json:"raised" binding:"required"`
}

type noteRequest struct {
	Content string `json:"content" binding:"max=65536"`
}

type cursorRequest struct {
	X     *float64 `json:"x" binding:"required"`
	Y     *float64 `json:"y" binding:"required"`
	Color string   `json:"color" binding:"omitempty,max=32"`
}

type pollRequest struct {
	Question string   `json:"question" binding:"required"`
	Options  []string `json:"options" binding:"required,min=2,dive,required"`
}

type voteRequest struct {
	OptionIndex *int `json:"option_index" binding:"required,min=0"`
}

type questionRequest struct {
	Text string `json:"text" binding:"required,max=1024"`
}

type mediaRequest struct {
	Kind    string `json:"kind" binding:"required,oneof=audio video"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type adminActionRequest struct {
	Action   string `json:"action" binding:"required,oneof=KICK SET_ROLE ADMIT"`
	TargetID int64  `json:"target_id" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=host presenter viewer"`
}

func (h *handlers) state(c *gin.Context) {
	success(c, http.StatusOK, meeting(c).Snapshot())
}

func (h *handlers) transcript(c *gin.Context) {
	success(c, http.StatusOK, meeting(c).Transcript())
}

func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).SendChat(req.Text))
}

func (h *handlers) reaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).React(req.Emoji))
}

func (h *handlers) hand(c *gin.Context) {
	var req handRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).SetHandRaised(*req.Raised))
}

func (h *handlers) note(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).UpdateNote(req.Content))
}

func (h *handlers) cursor(c *gin.Context) {
	var req cursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).MoveCursor(*req.X, *req.Y, req.Color))
}

func (h *handlers) createPoll(c *gin.Context) {
	var req pollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).CreatePoll(req.Question, req.Options))
}

func (h *handlers) votePoll(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).VotePoll(*req.OptionIndex))
}

func (h *handlers) askQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	id, err := meeting(c).AskQuestion(req.Text)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"id": id})
}

func (h *handlers) upvoteQuestion(c *gin.Context) {
	reply(c, meeting(c).UpvoteQuestion(c.Param("id")))
}

func (h *handlers) deleteQuestion(c *gin.Context) {
	reply(c, meeting(c).DeleteQuestion(c.Param("id")))
}

func (h *handlers) media(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).SetMedia(c.Request.Context(), core.MediaKind(req.Kind), *req.Enabled))
}

func (h *handlers) screen(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).SetMedia(c.Request.Context(), core.MediaScreen, *req.Enabled))
}

func (h *handlers) captions(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).SetCaptions(*req.Enabled))
}

func (h *handlers) recording(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).SetRecording(*req.Enabled))
}

func (h *handlers) settings(c *gin.Context) {
	var req domain.AdminSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	reply(c, meeting(c).UpdateSettings(req))
}

func (h *handlers) adminAction(c *gin.Context) {
	var req adminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}
	err := meeting(c).Admin(protocol.AdminActionKind(req.Action), domain.UserID(req.TargetID), domain.Role(req.Role))
	reply(c, err)
}

func (h *handlers) leave(c *gin.Context) {
	reply(c, meeting(c).Leave())
}
