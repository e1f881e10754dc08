package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8080" || c.DBPath != "questtracker.db" || c.LogFormat != "text" {
		t.Errorf("defaults = %q %q %q", c.Port, c.DBPath, c.LogFormat)
	}
	if c.SessionTTL != 30*24*time.Hour {
		t.Errorf("SessionTTL = %v", c.SessionTTL)
	}
	if c.BackupHour != 3 || c.RateBurst != 40 {
		t.Errorf("BackupHour/RateBurst = %d/%d", c.BackupHour, c.RateBurst)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QUESTTRACKER_PORT", "9090")
	t.Setenv("QUESTTRACKER_BASE_URL", "https://quests.example.com/")
	t.Setenv("QUESTTRACKER_CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("QUESTTRACKER_TOKEN_TTL", "2h")
	t.Setenv("QUESTTRACKER_RATE_LIMIT", "5.5")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "9090" {
		t.Errorf("Port = %q", c.Port)
	}
	if c.BaseURL != "https://quests.example.com" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if !slices.Equal(c.CORSOrigins, []string{"https://a.example.com", "https://b.example.com"}) {
		t.Errorf("CORSOrigins = %v", c.CORSOrigins)
	}
	if c.TokenTTL != 2*time.Hour || c.RateLimit != 5.5 {
		t.Errorf("TokenTTL/RateLimit = %v/%v", c.TokenTTL, c.RateLimit)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("QUESTTRACKER_BACKUP_HOUR", "25")
	if _, err := Load(); err == nil {
		t.Error("expected error for BACKUP_HOUR=25")
	}
	t.Setenv("QUESTTRACKER_BACKUP_HOUR", "two")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BACKUP_HOUR") {
		t.Errorf("err = %v, want BACKUP_HOUR parse error", err)
	}
}

func TestValidate(t *testing.T) {
	c := &Config{JWTSecret: "short"}
	if err := c.Validate(); err == nil {
		t.Error("expected short secret to fail")
	}
	c.JWTSecret = strings.Repeat("s", 32)
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	c.VAPIDPublicKey = "pub"
	if err := c.Validate(); err == nil {
		t.Error("expected half-configured VAPID to fail")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file err = %v, want nil", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("QUESTTRACKER_DB_PATH=/tmp/from-env-file.db\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("QUESTTRACKER_DB_PATH", "")
	os.Unsetenv("QUESTTRACKER_DB_PATH")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DBPath != "/tmp/from-env-file.db" {
		t.Errorf("DBPath = %q", c.DBPath)
	}
}
