package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	// RedisURL enables the metadata cache; empty disables it.
	RedisURL string `mapstructure:"redis_url"`

	Store    Store    `mapstructure:"store"`
	Metadata Metadata `mapstructure:"metadata"`
	Room     Room     `mapstructure:"room"`
}

type Store struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Metadata struct {
	SpotifyOEmbedURL string        `mapstructure:"spotify_oembed_url"`
	YouTubeOEmbedURL string        `mapstructure:"youtube_oembed_url"`
	YouTubeAPIURL    string        `mapstructure:"youtube_api_url"`
	YouTubeAPIKey    string        `mapstructure:"youtube_api_key"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
}

type Room struct {
	HistoryLimit   int           `mapstructure:"history_limit"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
	IdleTTL        time.Duration `mapstructure:"idle_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	ChatRate       int           `mapstructure:"chat_rate"`
	ChatInterval   time.Duration `mapstructure:"chat_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("redis_url", "")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "syncroom.db")

	v.SetDefault("metadata.spotify_oembed_url", "https://open.spotify.com/oembed")
	v.SetDefault("metadata.youtube_oembed_url", "https://www.youtube.com/oembed")
	v.SetDefault("metadata.youtube_api_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("metadata.youtube_api_key", "")
	v.SetDefault("metadata.cache_ttl", "24h")
	v.SetDefault("metadata.http_timeout", "5s")

	v.SetDefault("room.history_limit", 50)
	v.SetDefault("room.persist_timeout", "5s")
	v.SetDefault("room.idle_ttl", "30m")
	v.SetDefault("room.sweep_interval", "1m")
	v.SetDefault("room.send_buffer", 64)
	v.SetDefault("room.chat_rate", 20)
	v.SetDefault("room.chat_interval", "10s")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// SYNCROOM_* environment variables win over both, e.g. SYNCROOM_STORE_DSN.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("SYNCROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("store", cfg.Store.Driver).
		Msg("config ready")
	return &cfg, nil
}
