// Package config loads the process configuration from the environment.
// A .env file in the working directory is honored for local development.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr      string `envconfig:"ADDR" default:":8080"`
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	// Presence knobs. A participant silent for longer than StaleThreshold is
	// evicted by the next sweep; SweepInterval is the distance between sweeps.
	StaleThreshold time.Duration `envconfig:"STALE_THRESHOLD" default:"10s"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"15s"`

	// BroadcastName is the reserved recipient meaning "everyone in the room".
	BroadcastName string `envconfig:"BROADCAST_NAME" default:"Todos"`

	// KeyPrefix namespaces every Redis key this process writes.
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"chat"`
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
