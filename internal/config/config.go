// internal/config/config.go
//
// Environment-driven configuration for the server.
// main loads `.env` (godotenv) first, then calls Load which reads the
// process environment, applies defaults and validates values.
//
// Environment variables:
//   PORT, LOG_LEVEL, APP_ENV, DB_PATH, CLIENT_ORIGIN,
//   JWT_SECRET, JWT_EXPIRES_DAYS, COOKIE_NAME, WORDS_FILE,
//   ROUND_TIMEOUT, ROUND_INTERVAL, MAX_BITES,
//   SESSION_IDLE_TTL, SESSION_REAP_INTERVAL

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robalobadob/typing-escape/internal/game"
)

// Config holds every runtime setting.
type Config struct {
	Port           string
	LogLevel       string
	Production     bool
	DBPath         string
	ClientOrigin   string
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	WordsFile      string

	Rules game.Rules

	SessionIdleTTL      time.Duration
	SessionReapInterval time.Duration
}

// Load reads the environment. Invalid values are reported with the
// variable name.
func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Production:   getEnv("APP_ENV", "development") == "production",
		DBPath:       getEnv("DB_PATH", "./data/app.db"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
		CookieName:   getEnv("COOKIE_NAME", "escape_token"),
		WordsFile:    os.Getenv("WORDS_FILE"),
		Rules:        game.DefaultRules(),
	}

	var err error
	if cfg.JWTExpiresDays, err = intEnv("JWT_EXPIRES_DAYS", 14); err != nil {
		return cfg, err
	}
	if cfg.Rules.RoundTimeout, err = durationEnv("ROUND_TIMEOUT", cfg.Rules.RoundTimeout); err != nil {
		return cfg, err
	}
	if cfg.Rules.RoundInterval, err = durationEnv("ROUND_INTERVAL", cfg.Rules.RoundInterval); err != nil {
		return cfg, err
	}
	if cfg.Rules.MaxBites, err = intEnv("MAX_BITES", cfg.Rules.MaxBites); err != nil {
		return cfg, err
	}
	if cfg.SessionIdleTTL, err = durationEnv("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.SessionReapInterval, err = durationEnv("SESSION_REAP_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}

	if err := cfg.Rules.Validate(); err != nil {
		return cfg, err
	}
	if cfg.JWTExpiresDays <= 0 {
		return cfg, fmt.Errorf("JWT_EXPIRES_DAYS: must be positive")
	}
	if cfg.SessionIdleTTL <= 0 || cfg.SessionReapInterval <= 0 {
		return cfg, fmt.Errorf("SESSION_IDLE_TTL and SESSION_REAP_INTERVAL must be positive")
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string { return ":" + c.Port }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
