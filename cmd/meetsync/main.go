package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/meetsync/internal/adapters/http"
	"github.com/dkeye/meetsync/internal/adapters/rtc"
	relay "github.com/dkeye/meetsync/internal/adapters/signal"
	"github.com/dkeye/meetsync/internal/adapters/speech"
	"github.com/dkeye/meetsync/internal/app/orch"
	"github.com/dkeye/meetsync/internal/config"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	user, err := domain.NewLocalUser(domain.UserID(cfg.UserID), cfg.DisplayName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid display name")
	}

	peers, err := rtc.NewFactory(cfg.ICEServers)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc setup failed")
	}
	devices := rtc.NewDevices(map[core.MediaKind]rtc.Source{
		core.MediaAudio:  {Addr: cfg.Media.AudioAddr, Idle: cfg.Media.Idle},
		core.MediaVideo:  {Addr: cfg.Media.VideoAddr, Idle: cfg.Media.Idle},
		core.MediaScreen: {Addr: cfg.Media.ScreenAddr, Idle: cfg.Media.Idle},
	})

	var policy orch.ReconnectPolicy = orch.NoReconnect{}
	if cfg.Reconnect.Enabled {
		policy = orch.BackoffPolicy{
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			Backoff:     cfg.Reconnect.Backoff,
			MaxBackoff:  cfg.Reconnect.MaxBackoff,
		}
	}

	deps := orch.Deps{
		Signaler: relay.NewDialer(relay.Options{
			URL:             cfg.SignalURL,
			HeartbeatPeriod: cfg.HeartbeatPeriod,
			WriteWait:       cfg.WriteWait,
			ReadLimit:       cfg.ReadLimit,
		}),
		Peers:   peers,
		Devices: devices,
	}
	if cfg.Captions.EngineURL != "" {
		deps.Recognizer = speech.New(speech.Options{URL: cfg.Captions.EngineURL, Language: cfg.Captions.Language})
		log.Info().Str("engine", cfg.Captions.EngineURL).Msg("captions engine configured")
	}

	runner := orch.NewRunner(deps, orch.Options{
		MeetingID:           domain.MeetingID(cfg.MeetingID),
		Credential:          core.Credential{Token: cfg.Token, User: *user},
		CaptionRestartDelay: cfg.CaptionRestartDelay,
		CursorLimit:         cfg.CursorRate.Limit,
		CursorInterval:      cfg.CursorRate.Interval,
	}, policy)

	r := router.SetupRouter(cfg.Mode, func() router.Meeting {
		if s := runner.Current(); s != nil {
			return s
		}
		return nil
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meetsync api started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}()

	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("meeting ended with error")
	} else {
		log.Info().Msg("meeting ended")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("meetsync exited")
}
