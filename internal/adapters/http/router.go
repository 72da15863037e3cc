package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetsync/internal/app/store"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
	"github.com/dkeye/meetsync/internal/protocol"
)

// Meeting is the session surface the API drives. *orch.Session satisfies it.
type Meeting interface {
	Snapshot() store.State
	Transcript() []domain.TranscriptEntry

	SendChat(text string) error
	React(emoji string) error
	SetHandRaised(raised bool) error
	UpdateNote(content string) error
	MoveCursor(x, y float64, color string) error
	CreatePoll(question string, options []string) error
	VotePoll(option int) error
	AskQuestion(text string) (string, error)
	UpvoteQuestion(id string) error
	DeleteQuestion(id string) error

	SetMedia(ctx context.Context, kind core.MediaKind, on bool) error
	SetCaptions(on bool) error
	SetRecording(on bool) error

	UpdateSettings(settings domain.AdminSettings) error
	Admin(action protocol.AdminActionKind, target domain.UserID, role domain.Role) error
	Leave() error
}

// Current returns the live meeting session, or nil while none is open.
type Current func() Meeting

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func SetupRouter(mode string, current Current) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())

	h := &handlers{current: current}
	api := r.Group("/api", h.requireSession)

	api.GET("/state", h.state)
	api.GET("/transcript", h.transcript)

	api.POST("/chat", h.chat)
	api.POST("/reaction", h.reaction)
	api.POST("/hand", h.hand)
	api.POST("/note", h.note)
	api.POST("/cursor", h.cursor)

	api.POST("/poll", h.createPoll)
	api.POST("/poll/vote", h.votePoll)
	api.POST("/questions", h.askQuestion)
	api.POST("/questions/:id/upvote", h.upvoteQuestion)
	api.DELETE("/questions/:id", h.deleteQuestion)

	api.POST("/media", h.media)
	api.POST("/screen", h.screen)
	api.POST("/captions", h.captions)
	api.POST("/recording", h.recording)

	admin := api.Group("/admin")
	admin.POST("/settings", h.settings)
	admin.POST("/action", h.adminAction)

	api.POST("/leave", h.leave)

	log.Info().Str("module", "adapters.http").Str("mode", mode).Msg("router setup")
	return r
}
