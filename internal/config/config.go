package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr     string // API bind address, e.g. "127.0.0.1:8080" or ":8080" in a container
	LogDir   string
	LogLevel string

	DatabaseURL string // empty means in-memory store

	// Probe defaults
	CheckTimeout    time.Duration
	ProxyMode       string   // manual | none | explicit | env_external | env_auto
	ProxyURL        string   // used by manual/explicit
	InternalDomains []string // NO_PROXY-style patterns env_auto never proxies
	RetryAttempts   int
	RetryBackoff    time.Duration

	// Scheduler
	CheckInterval       time.Duration // 0 disables the rechecker
	MaxConcurrentChecks int

	// Alerts
	SlackWebhook    string
	AlertOnRecovery bool
	AlertCooldown   time.Duration

	// API
	PublicAPIKeys   []string
	AdminAPIKeys    []string
	AllowedOrigins  []string
	RateLimitPerMin int // 0 disables
	RateLimitBurst  int
}

func FromEnv() Config {
	return Config{
		Addr:     str("API_ADDR", "127.0.0.1:8080"),
		LogDir:   str("LOG_DIR", "logs"),
		LogLevel: str("LOG_LEVEL", "info"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),

		CheckTimeout:    millis("CHECK_TIMEOUT_MS", 3*time.Second, false),
		ProxyMode:       str("PROXY_MODE", "manual"),
		ProxyURL:        strings.TrimSpace(os.Getenv("PROXY_URL")),
		InternalDomains: list("INTERNAL_DOMAINS"),
		RetryAttempts:   positive("RETRY_ATTEMPTS", 2),
		RetryBackoff:    millis("RETRY_BACKOFF_MS", 300*time.Millisecond, true),

		CheckInterval:       millis("CHECK_INTERVAL_MS", time.Minute, true),
		MaxConcurrentChecks: positive("MAX_CONCURRENT_CHECKS", 4),

		SlackWebhook:    strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")),
		AlertOnRecovery: boolean("ALERT_ON_RECOVERY", true),
		AlertCooldown:   millis("ALERT_COOLDOWN_MS", 10*time.Minute, true),

		PublicAPIKeys:   list("PUBLIC_API_KEYS"),
		AdminAPIKeys:    list("ADMIN_API_KEYS"),
		AllowedOrigins:  list("ALLOWED_ORIGINS"),
		RateLimitPerMin: nonNegative("RATE_LIMIT_PER_MIN", 60),
		RateLimitBurst:  positive("RATE_LIMIT_BURST", 10),
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positive(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func nonNegative(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// millis reads a millisecond count; zero is only accepted when allowZero.
func millis(key string, def time.Duration, allowZero bool) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && (ms > 0 || (allowZero && ms == 0)) {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func boolean(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
