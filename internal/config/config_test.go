package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "APP_ENV", "JWT_EXPIRES_DAYS", "ROUND_TIMEOUT", "ROUND_INTERVAL", "MAX_BITES", "COOKIE_NAME", "WORDS_FILE"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != ":5175" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.Production {
		t.Error("Production should default to false")
	}
	if cfg.JWTExpiresDays != 14 || cfg.CookieName != "escape_token" {
		t.Errorf("unexpected auth defaults: %+v", cfg)
	}
	if cfg.Rules.RoundTimeout != 5*time.Second || cfg.Rules.RoundInterval != 10*time.Second || cfg.Rules.MaxBites != 5 {
		t.Errorf("unexpected rules: %+v", cfg.Rules)
	}
	if cfg.SessionIdleTTL != 30*time.Minute {
		t.Errorf("SessionIdleTTL = %v", cfg.SessionIdleTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ROUND_TIMEOUT", "3s")
	t.Setenv("ROUND_INTERVAL", "4s")
	t.Setenv("MAX_BITES", "3")
	t.Setenv("SESSION_IDLE_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || !cfg.Production {
		t.Errorf("unexpected cfg: %+v", cfg)
	}
	if cfg.Rules.RoundTimeout != 3*time.Second || cfg.Rules.RoundInterval != 4*time.Second || cfg.Rules.MaxBites != 3 {
		t.Errorf("unexpected rules: %+v", cfg.Rules)
	}
	if cfg.SessionIdleTTL != 5*time.Minute {
		t.Errorf("SessionIdleTTL = %v", cfg.SessionIdleTTL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
		named      bool // parse errors name the variable
	}{
		{"ROUND_TIMEOUT", "soon", true},
		{"ROUND_INTERVAL", "-1s", false},
		{"MAX_BITES", "five", true},
		{"MAX_BITES", "0", false},
		{"JWT_EXPIRES_DAYS", "0", true},
		{"SESSION_REAP_INTERVAL", "0s", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.named && !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}
