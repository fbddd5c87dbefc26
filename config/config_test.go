package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "lorekeep", cfg.InstanceName)
	assert.Equal(t, 0.4, cfg.ConfidenceFloor)
	assert.Equal(t, 0.35, cfg.AgreementTolerance)
	assert.Equal(t, 0.1, cfg.CorroborationWeight)
	assert.Equal(t, int64(4), cfg.MaxConcurrent)
	assert.Equal(t, 8, cfg.MaxIterations)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOREKEEP_REDIS_ADDR", "localhost:6379")
	t.Setenv("LOREKEEP_CONFIDENCE_FLOOR", "0.6")
	t.Setenv("LOREKEEP_CHILD_TIMEOUT", "30s")
	t.Setenv("LOREKEEP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0.6, cfg.ConfidenceFloor)
	assert.Equal(t, "30s", cfg.ChildTimeout.String())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	t.Setenv("LOREKEEP_CONFIDENCE_FLOOR", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		InstanceName:       "lorekeep",
		ConfidenceFloor:    0.4,
		AgreementTolerance: 0.35,
		MaxConcurrent:      4,
		MaxIterations:      8,
	}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxConcurrent = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.AgreementTolerance = -0.1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.InstanceName = ""
	assert.Error(t, bad.Validate())
}
