package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	SQLitePath      string
	LogLevel        string
	APIToken        string
	WatchDirs       []string
	PollInterval    time.Duration
	Incremental     bool
	Workers         int
	AnthropicAPIKey string
	TagModel        string
}

var defaultWatchDirs = []string{"~/.claude/projects", "~/.codex/sessions", "~/.openclaw/agents"}

func Load() Config {
	return Config{
		Port:            envInt("SCRIBE_PORT", 8760),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		SQLitePath:      envStr("SCRIBE_SQLITE_PATH", "~/.scribe/scribe.db"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		APIToken:        envStr("SCRIBE_API_TOKEN", ""),
		WatchDirs:       envList("SCRIBE_WATCH_DIRS", defaultWatchDirs),
		PollInterval:    envDuration("SCRIBE_POLL_INTERVAL", 5*time.Second),
		Incremental:     envBool("SCRIBE_INCREMENTAL", true),
		Workers:         envInt("SCRIBE_WORKERS", 4),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		TagModel:        envStr("SCRIBE_TAG_MODEL", "claude-sonnet-4-20250514"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
