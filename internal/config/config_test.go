package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.BusBackend)
	assert.Equal(t, 30, cfg.DefaultDurationMin)
	assert.Equal(t, "in-person", cfg.DefaultMode)
	assert.Equal(t, 20, cfg.RecentLimit)
	assert.True(t, cfg.GeoSkip)
	assert.Equal(t, 4*time.Second, cfg.GeoTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BUS_BACKEND", "redis")
	t.Setenv("DEFAULT_DURATION_MIN", "45")
	t.Setenv("GEO_SKIP", "false")
	t.Setenv("GEO_TIMEOUT", "2s")

	cfg := Load()
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "redis", cfg.BusBackend)
	assert.Equal(t, 45, cfg.DefaultDurationMin)
	assert.False(t, cfg.GeoSkip)
	assert.Equal(t, 2*time.Second, cfg.GeoTimeout)
}

func TestLoadMalformedFallsBack(t *testing.T) {
	t.Setenv("DEFAULT_DURATION_MIN", "soon")
	t.Setenv("GEO_SKIP", "maybe")
	t.Setenv("GEO_TIMEOUT", "shortly")

	cfg := Load()
	assert.Equal(t, 30, cfg.DefaultDurationMin)
	assert.True(t, cfg.GeoSkip)
	assert.Equal(t, 4*time.Second, cfg.GeoTimeout)
}
