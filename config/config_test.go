package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(Options{})

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, 64, cfg.Relay.MaxPeersPerRoom)
	assert.Equal(t, 512*1024, cfg.Relay.MaxMessageBytes)
	assert.Equal(t, 96000, cfg.Relay.MaxAudioSamples)
	assert.Equal(t, int64(1024*1024), cfg.Relay.ReadLimitBytes)
	assert.Equal(t, 10*time.Second, cfg.Relay.JoinTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MAX_PEERS_PER_ROOM", "8")
	t.Setenv("MAX_MESSAGE_BYTES", "1000")
	t.Setenv("JOIN_TIMEOUT", "3s")
	t.Setenv("REDIS_ENABLED", "true")

	cfg := Load(Options{})

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 8, cfg.Relay.MaxPeersPerRoom)
	assert.Equal(t, int64(2000), cfg.Relay.ReadLimitBytes)
	assert.Equal(t, 3*time.Second, cfg.Relay.JoinTimeout)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_AUDIO_SAMPLES", "100")

	cfg := Load(Options{Port: "7000", MaxAudioSamples: 200})

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 200, cfg.Relay.MaxAudioSamples)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_PEERS_PER_ROOM", "-3")
	t.Setenv("MAX_AUDIO_SAMPLES", "lots")
	t.Setenv("SEND_TIMEOUT", "soon")

	cfg := Load(Options{})

	assert.Equal(t, DefaultMaxPeersPerRoom, cfg.Relay.MaxPeersPerRoom)
	assert.Equal(t, DefaultMaxAudioSamples, cfg.Relay.MaxAudioSamples)
	assert.Equal(t, 2*time.Second, cfg.Relay.SendTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Load(Options{})
	cfg.Relay.ReadLimitBytes = 10
	assert.Error(t, cfg.Validate())

	cfg = Load(Options{})
	cfg.Relay.PingInterval = time.Minute
	assert.Error(t, cfg.Validate())

	cfg = Load(Options{Port: "http"})
	assert.Error(t, cfg.Validate())
}
