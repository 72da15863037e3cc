package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	SignalURL   string `mapstructure:"signal_url"`
	MeetingID   string `mapstructure:"meeting_id"`
	Token       string `mapstructure:"token"`
	UserID      int64  `mapstructure:"user_id"`
	DisplayName string `mapstructure:"display_name"`

	HeartbeatPeriod time.Duration `mapstructure:"heartbeat_period"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	ICEServers      []string      `mapstructure:"ice_servers"`

	CaptionRestartDelay time.Duration  `mapstructure:"caption_restart_delay"`
	Captions            CaptionsConfig `mapstructure:"captions"`

	CursorRate RateConfig      `mapstructure:"cursor_rate"`
	Reconnect  ReconnectConfig `mapstructure:"reconnect"`
	Media      MediaConfig     `mapstructure:"media"`
}

// CaptionsConfig points at a streaming speech engine. Captions stay
// unavailable while EngineURL is empty.
type CaptionsConfig struct {
	EngineURL string `mapstructure:"engine_url"`
	Language  string `mapstructure:"language"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type ReconnectConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// MediaConfig names the local UDP addresses that RTP sources for each
// capture kind are read from. An empty address leaves that kind unavailable.
type MediaConfig struct {
	AudioAddr  string        `mapstructure:"audio_addr"`
	VideoAddr  string        `mapstructure:"video_addr"`
	ScreenAddr string        `mapstructure:"screen_addr"`
	Idle       time.Duration `mapstructure:"idle"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.SetEnvPrefix("MEETSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("meeting", cfg.MeetingID).
		Bool("reconnect", cfg.Reconnect.Enabled).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("signal_url", "ws://localhost:8000/api/v1/video-meeting")
	v.SetDefault("meeting_id", "")
	v.SetDefault("token", "")
	v.SetDefault("user_id", 0)
	v.SetDefault("display_name", "")

	v.SetDefault("heartbeat_period", "30s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("caption_restart_delay", "1s")
	v.SetDefault("captions.engine_url", "")
	v.SetDefault("captions.language", "en-US")

	v.SetDefault("cursor_rate.limit", 20)
	v.SetDefault("cursor_rate.interval", "1s")

	v.SetDefault("reconnect.enabled", false)
	v.SetDefault("reconnect.max_attempts", 5)
	v.SetDefault("reconnect.backoff", "1s")
	v.SetDefault("reconnect.max_backoff", "30s")

	v.SetDefault("media.audio_addr", "")
	v.SetDefault("media.video_addr", "")
	v.SetDefault("media.screen_addr", "")
	v.SetDefault("media.idle", "5s")
}

func (c *Config) validate() error {
	if c.MeetingID == "" {
		return errors.New("meeting_id is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}
