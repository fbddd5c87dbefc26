// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every tunable for wiring an engine from the environment.
// Zero-valued fields fall back to the listed defaults.
type Config struct {
	// Storage. An empty RedisAddr selects the in-memory store.
	RedisAddr     string `env:"LOREKEEP_REDIS_ADDR"`
	RedisPassword string `env:"LOREKEEP_REDIS_PASSWORD"`
	RedisDB       int    `env:"LOREKEEP_REDIS_DB"       envDefault:"0"`
	InstanceName  string `env:"LOREKEEP_INSTANCE"       envDefault:"lorekeep"`

	// Model tiering. The orchestrator gets the strongest model; specialists
	// may run on a cheaper one. Empty SpecialistModelID reuses the
	// orchestrator model.
	ModelProvider       string `env:"LOREKEEP_MODEL_PROVIDER" envDefault:"anthropic"`
	OrchestratorModelID string `env:"LOREKEEP_ORCHESTRATOR_MODEL"`
	SpecialistModelID   string `env:"LOREKEEP_SPECIALIST_MODEL"`

	// Curator thresholds.
	ConfidenceFloor     float64 `env:"LOREKEEP_CONFIDENCE_FLOOR"     envDefault:"0.4"`
	AgreementTolerance  float64 `env:"LOREKEEP_AGREEMENT_TOLERANCE"  envDefault:"0.35"`
	CorroborationWeight float64 `env:"LOREKEEP_CORROBORATION_WEIGHT" envDefault:"0.1"`

	// Dispatch bounds.
	MaxConcurrent int64         `env:"LOREKEEP_MAX_CONCURRENT" envDefault:"4"`
	ChildTimeout  time.Duration `env:"LOREKEEP_CHILD_TIMEOUT"  envDefault:"2m"`
	MaxIterations int           `env:"LOREKEEP_MAX_ITERATIONS" envDefault:"8"`

	// Logging.
	LogLevel  string `env:"LOREKEEP_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOREKEEP_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks threshold and bound ranges.
func (c Config) Validate() error {
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence floor %v out of range [0,1]", c.ConfidenceFloor)
	}
	if c.AgreementTolerance < 0 || c.AgreementTolerance > 1 {
		return fmt.Errorf("agreement tolerance %v out of range [0,1]", c.AgreementTolerance)
	}
	if c.CorroborationWeight < 0 {
		return fmt.Errorf("corroboration weight %v must not be negative", c.CorroborationWeight)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent %d must be at least 1", c.MaxConcurrent)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations %d must be at least 1", c.MaxIterations)
	}
	if c.InstanceName == "" {
		return fmt.Errorf("instance name must not be empty")
	}
	return nil
}
