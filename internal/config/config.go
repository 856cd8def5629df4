package config

import (
	"fmt"
	"os"
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

	// DatabaseURL selects the postgres ledger; empty keeps the
	// in-memory ledger (rows lost on restart).
	DatabaseURL string `mapstructure:"database_url"`

	// RetryInterval is the negotiator's fixed retry window.
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	// MaxRetries of 0 leaves the negotiator retry loop unbounded.
	MaxRetries int `mapstructure:"max_retries"`
	// CloseOldOnReregister closes a superseded connection when the
	// same identity registers again. Off by default: the old handle
	// may still carry an in-flight negotiation.
	CloseOldOnReregister bool `mapstructure:"close_old_on_reregister"`
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
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("database_url", "")
	v.SetDefault("retry_interval", "5s")
	v.SetDefault("max_retries", 0)
	v.SetDefault("close_old_on_reregister", false)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Bool("postgres", cfg.DatabaseURL != "").Msg("config ready")
	return &cfg, nil
}
