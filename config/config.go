package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	Relay          RelayConfig
	Redis          RedisConfig
}

// RelayConfig holds the room ceilings and transport timings.
type RelayConfig struct {
	MaxPeersPerRoom   int           // admission ceiling per room
	MaxMessageBytes   int           // frame size ceiling
	MaxAudioSamples   int           // samples ceiling per audio message
	ReadLimitBytes    int64         // hard transport limit, the socket is closed past it
	JoinTimeout       time.Duration // wait for the join message
	SendTimeout       time.Duration // per-recipient wait during fan-out
	FanoutConcurrency int
	PingInterval      time.Duration
	PongWait          time.Duration
	WriteWait         time.Duration
	SendBuffer        int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
}

// Options carries command line overrides. Zero values mean "not set".
type Options struct {
	Port            string
	MaxPeersPerRoom int
	MaxMessageBytes int
	MaxAudioSamples int
}

const (
	DefaultPort            = "8080"
	DefaultMaxPeersPerRoom = 64
	DefaultMaxMessageBytes = 512 * 1024
	DefaultMaxAudioSamples = 48000 * 2
)

// Load reads configuration with flag > env > default priority.
func Load(opts Options) *Config {
	// Parse allowed origins (comma-separated)
	origins := splitCSV(getEnv("ALLOWED_ORIGINS", "*"))

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Relay: RelayConfig{
			MaxPeersPerRoom:   getEnvInt("MAX_PEERS_PER_ROOM", DefaultMaxPeersPerRoom),
			MaxMessageBytes:   getEnvInt("MAX_MESSAGE_BYTES", DefaultMaxMessageBytes),
			MaxAudioSamples:   getEnvInt("MAX_AUDIO_SAMPLES", DefaultMaxAudioSamples),
			JoinTimeout:       getEnvDuration("JOIN_TIMEOUT", 10*time.Second),
			SendTimeout:       getEnvDuration("SEND_TIMEOUT", 2*time.Second),
			FanoutConcurrency: getEnvInt("FANOUT_CONCURRENCY", 16),
			PingInterval:      getEnvDuration("PING_INTERVAL", 20*time.Second),
			PongWait:          getEnvDuration("PONG_WAIT", 40*time.Second),
			WriteWait:         getEnvDuration("WRITE_WAIT", 10*time.Second),
			SendBuffer:        getEnvInt("SEND_BUFFER", 256),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "relay"),
		},
	}

	if opts.Port != "" {
		cfg.Port = opts.Port
	}
	if opts.MaxPeersPerRoom > 0 {
		cfg.Relay.MaxPeersPerRoom = opts.MaxPeersPerRoom
	}
	if opts.MaxMessageBytes > 0 {
		cfg.Relay.MaxMessageBytes = opts.MaxMessageBytes
	}
	if opts.MaxAudioSamples > 0 {
		cfg.Relay.MaxAudioSamples = opts.MaxAudioSamples
	}

	// The read limit follows the message ceiling unless set explicitly.
	cfg.Relay.ReadLimitBytes = int64(getEnvInt("READ_LIMIT_BYTES", 2*cfg.Relay.MaxMessageBytes))

	return cfg
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	if c.Relay.ReadLimitBytes < int64(c.Relay.MaxMessageBytes) {
		return fmt.Errorf("read limit %d is below max message size %d",
			c.Relay.ReadLimitBytes, c.Relay.MaxMessageBytes)
	}
	if c.Relay.PingInterval >= c.Relay.PongWait {
		return fmt.Errorf("ping interval %s must be shorter than pong wait %s",
			c.Relay.PingInterval, c.Relay.PongWait)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }

// RedisAddr is host:port for the Redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses a positive int env var with a fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
