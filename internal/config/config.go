// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxPort is the highest port the launcher tries when the configured one is taken.
const MaxPort = 9000

const highestPort = 65535

// Config holds all application configuration.
type Config struct {
	Port             int
	Host             string
	Share            bool
	DBPath           string
	ProvidersPath    string // empty = embedded registry
	SystemPromptPath string // empty = embedded prompt
	SessionTTL       time.Duration
	StreamTimeout    time.Duration // 0 = no deadline
	VerifyOnConnect  bool
	AllowedOrigins   []string
	GRPCHealthAddr   string // empty disables the health server
	LogLevel         slog.Level
	RateLimit        RateLimitConfig
	SSE              SSEConfig
}

// RateLimitConfig bounds chat submissions per client.
type RateLimitConfig struct {
	Requests           int
	Window             time.Duration
	MaxRequestBodySize int64
}

// SSEConfig controls server-sent event streams.
type SSEConfig struct {
	KeepaliveInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnvInt("PORT", 7860),
		Host:             getEnv("HOST", "127.0.0.1"),
		Share:            getEnvBool("SHARE", false),
		DBPath:           getEnv("DB_PATH", "./data/hacxweb.db"),
		ProvidersPath:    getEnv("PROVIDERS_PATH", ""),
		SystemPromptPath: getEnv("SYSTEM_PROMPT_PATH", ""),
		SessionTTL:       getEnvDuration("SESSION_TTL", 60*time.Minute),
		StreamTimeout:    getEnvDuration("STREAM_TIMEOUT", 0),
		VerifyOnConnect:  getEnvBool("VERIFY_ON_CONNECT", false),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS"),
		GRPCHealthAddr:   getEnv("GRPC_HEALTH_ADDR", ""),
		LogLevel:         getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		RateLimit: RateLimitConfig{
			Requests:           getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:             getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 64*1024)),
		},
		SSE: SSEConfig{
			KeepaliveInterval: getEnvDuration("SSE_KEEPALIVE_INTERVAL", 15*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > highestPort {
		return fmt.Errorf("PORT must be between 1 and %d", highestPort)
	}
	if c.Host == "" {
		return fmt.Errorf("HOST cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.StreamTimeout < 0 {
		return fmt.Errorf("STREAM_TIMEOUT cannot be negative")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.RateLimit.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.SSE.KeepaliveInterval <= 0 {
		return fmt.Errorf("SSE_KEEPALIVE_INTERVAL must be > 0")
	}
	if c.GRPCHealthAddr != "" {
		if _, _, err := net.SplitHostPort(c.GRPCHealthAddr); err != nil {
			return fmt.Errorf("GRPC_HEALTH_ADDR: %w", err)
		}
	}
	return nil
}

// BindHost returns the interface to listen on. Share mode binds every interface.
func (c *Config) BindHost() string {
	if c.Share {
		return "0.0.0.0"
	}
	return c.Host
}

// IsDevelopment returns true when only local origins are expected.
func (c *Config) IsDevelopment() bool {
	return len(c.AllowedOrigins) == 0 && !c.Share
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
