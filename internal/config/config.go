// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven configuration for the poker client.
// A .env file is honored when the binary loads godotenv's autoload.
type Config struct {
	ServerURL        string        `env:"POKER_SERVER_URL" envDefault:"ws://localhost:8001"`
	Room             string        `env:"POKER_ROOM"`
	Name             string        `env:"POKER_NAME"`
	ReconnectRetries int           `env:"POKER_RECONNECT_RETRIES" envDefault:"3"`
	ReconnectDelay   time.Duration `env:"POKER_RECONNECT_DELAY" envDefault:"1s"`
	NudgeTTL         time.Duration `env:"POKER_NUDGE_TTL" envDefault:"3s"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
