package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds every environment-driven setting for the Bikya client.
type Config struct {
	AppName     string        `env:"BIKYA_APP_NAME" envDefault:"Bikya"`
	BaseURL     string        `env:"BIKYA_API_URL" envDefault:"http://localhost:5000/api"`
	SessionFile string        `env:"BIKYA_SESSION_FILE"`
	LogLevel    string        `env:"BIKYA_LOG_LEVEL" envDefault:"info"`
	HTTPTimeout time.Duration `env:"BIKYA_HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries  int           `env:"BIKYA_HTTP_MAX_RETRIES" envDefault:"3"`
}

// New parses the environment into a Config. SessionFile defaults to
// ~/.bikya/session.json when not set explicitly.
func New() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.SessionFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home dir for session file: %w", err)
		}
		cfg.SessionFile = filepath.Join(home, ".bikya", "session.json")
	}

	return cfg, nil
}
