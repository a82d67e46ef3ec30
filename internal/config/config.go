package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/eldtechnologies/chatsim/internal/persona"
	"github.com/eldtechnologies/chatsim/internal/session"
	"github.com/eldtechnologies/chatsim/internal/store"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Storage
	StoreBackend string // file, memory, sqlite, postgres, redis, pebble
	DataDir      string
	SQLitePath   string
	PebblePath   string
	DatabaseURL  string
	RedisURL     string

	// Chat
	PersonasFile       string
	DefaultPersona     string
	UserAvatar         string
	MaxImageSize       int64
	ReplyDelayMin      time.Duration
	ReplyDelayMax      time.Duration
	CancelReplyOnClear bool
	TimeFormat         string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// It panics on malformed values, and in production on a network backend
// without its URL.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		StoreBackend:       getEnv("STORE_BACKEND", "file"),
		DataDir:            getEnv("DATA_DIR", "./data"),
		SQLitePath:         os.Getenv("SQLITE_PATH"),
		PebblePath:         os.Getenv("PEBBLE_PATH"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		PersonasFile:       os.Getenv("PERSONAS_FILE"),
		DefaultPersona:     getEnv("DEFAULT_PERSONA", persona.DefaultID),
		UserAvatar:         getEnv("USER_AVATAR", persona.DefaultUserAvatar),
		MaxImageSize:       getBytes("MAX_IMAGE_SIZE", "2MiB"),
		ReplyDelayMin:      getDuration("REPLY_DELAY_MIN", "700ms"),
		ReplyDelayMax:      getDuration("REPLY_DELAY_MAX", "2200ms"),
		CancelReplyOnClear: getEnv("CANCEL_REPLY_ON_CLEAR", "false") == "true",
		TimeFormat:         getEnv("TIME_FORMAT", "15:04"),
		AutoBlockEnabled:   getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	if cfg.ReplyDelayMax < cfg.ReplyDelayMin {
		panic("REPLY_DELAY_MAX must not be less than REPLY_DELAY_MIN")
	}

	// In production, require the URL of the selected network backend
	if cfg.Env == "production" {
		if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.StoreBackend == "redis" && cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// StoreOptions returns the settings for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.StoreBackend,
		DataDir:     c.DataDir,
		SQLitePath:  c.SQLitePath,
		PebblePath:  c.PebblePath,
		DatabaseURL: c.DatabaseURL,
		RedisURL:    c.RedisURL,
	}
}

// SessionConfig returns the session tunables.
func (c *Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.DefaultPersona = c.DefaultPersona
	sc.UserAvatar = c.UserAvatar
	sc.MaxImageBytes = c.MaxImageSize
	sc.TimeFormat = c.TimeFormat
	sc.ReplyMinDelay = c.ReplyDelayMin
	sc.ReplyMaxDelay = c.ReplyDelayMax
	sc.CancelReplyOnClear = c.CancelReplyOnClear
	return sc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBytes parses a size such as "2MiB" or "500 kB".
func getBytes(key, defaultValue string) int64 {
	raw := getEnv(key, defaultValue)
	n, err := humanize.ParseBytes(raw)
	if err != nil || n == 0 {
		panic(fmt.Sprintf("%s: invalid size %q", key, raw))
	}
	return int64(n)
}

func getDuration(key, defaultValue string) time.Duration {
	raw := getEnv(key, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		panic(fmt.Sprintf("%s: invalid duration %q", key, raw))
	}
	return d
}
