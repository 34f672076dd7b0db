package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type SettingsBackend string

const (
	BackendMemory   SettingsBackend = "memory"
	BackendPostgres SettingsBackend = "postgres"
	BackendSQLite   SettingsBackend = "sqlite"
)

type Config struct {
	Port string

	ReplyDelay time.Duration
	TopK       int
	RulesFile  string // optional TOML override of the intent rules

	SettingsBackend SettingsBackend
	DatabaseURL     string
	SQLitePath      string

	TelegramToken string

	JWTSecret     string
	AdminUsername string
	AdminPassword string

	RateLimit float64 // requests per second per client
	RateBurst int

	PublicURL string
	LogLevel  string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	// bare numbers are milliseconds
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// LoadDotEnv loads .env files if present; a missing file is not an error
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	replyDelay, err := getDurationEnv("SUPPORTBOT_REPLY_DELAY", 1500*time.Millisecond)
	collect(err)
	topK, err := getIntEnv("SUPPORTBOT_TOP_K", 5)
	collect(err)
	rateLimit, err := getFloatEnv("SUPPORTBOT_RATE_LIMIT", 2)
	collect(err)
	rateBurst, err := getIntEnv("SUPPORTBOT_RATE_BURST", 5)
	collect(err)

	cfg := &Config{
		Port: getEnv("SUPPORTBOT_PORT", "8080"),

		ReplyDelay: replyDelay,
		TopK:       topK,
		RulesFile:  getEnv("SUPPORTBOT_RULES_FILE", ""),

		SettingsBackend: SettingsBackend(strings.ToLower(getEnv("SUPPORTBOT_SETTINGS_BACKEND", string(BackendMemory)))),
		DatabaseURL:     getEnv("SUPPORTBOT_DATABASE_URL", ""),
		SQLitePath:      getEnv("SUPPORTBOT_SQLITE_PATH", "data/settings.db"),

		TelegramToken: getEnv("SUPPORTBOT_TELEGRAM_TOKEN", ""),

		JWTSecret:     getEnv("SUPPORTBOT_JWT_SECRET", ""),
		AdminUsername: getEnv("SUPPORTBOT_ADMIN_USERNAME", ""),
		AdminPassword: getEnv("SUPPORTBOT_ADMIN_PASSWORD", ""),

		RateLimit: rateLimit,
		RateBurst: rateBurst,

		PublicURL: getEnv("SUPPORTBOT_PUBLIC_URL", "http://localhost:8080"),
		LogLevel:  getEnv("SUPPORTBOT_LOG_LEVEL", "info"),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	var errs []error
	if c.ReplyDelay < 0 {
		errs = append(errs, errors.New("reply delay cannot be negative"))
	}
	if c.TopK < 1 {
		errs = append(errs, errors.New("top-k must be at least 1"))
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		errs = append(errs, errors.New("rate limit and burst must be positive"))
	}

	switch c.SettingsBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("SUPPORTBOT_DATABASE_URL is required for the postgres settings backend"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SUPPORTBOT_SQLITE_PATH is required for the sqlite settings backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown settings backend %q", c.SettingsBackend))
	}

	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("admin username and password must be set together"))
	}
	if c.AdminUsername != "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("SUPPORTBOT_JWT_SECRET is required when an admin account is configured"))
	}
	return errors.Join(errs...)
}
