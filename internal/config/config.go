// Package config reads service settings from QUESTTRACKER_* environment
// variables, optionally seeded from a .env file.
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

const prefix = "QUESTTRACKER_"

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	LogFile   string
	BaseURL   string

	JWTSecret  string
	SessionTTL time.Duration
	TokenTTL   time.Duration

	PostmarkToken string
	EmailFrom     string
	SupportEmail  string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	FCMCredentialsFile string
	FCMCredentialsJSON string

	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	BackupPassphrase    string
	BackupHour          int
	BackupRetentionDays int

	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// LoadEnvFile loads path into the environment without overriding values
// that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	c := &Config{
		Port:      get("PORT", "8080"),
		DBPath:    get("DB_PATH", "questtracker.db"),
		LogLevel:  get("LOG_LEVEL", "info"),
		LogFormat: get("LOG_FORMAT", "text"),
		LogFile:   get("LOG_FILE", ""),
		BaseURL:   strings.TrimRight(get("BASE_URL", "http://localhost:8080"), "/"),

		JWTSecret: get("JWT_SECRET", ""),

		PostmarkToken: get("POSTMARK_TOKEN", ""),
		EmailFrom:     get("EMAIL_FROM", "noreply@questtracker.app"),
		SupportEmail:  get("SUPPORT_EMAIL", ""),

		VAPIDPublicKey:  get("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: get("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    get("VAPID_SUBJECT", "mailto:noreply@questtracker.app"),

		FCMCredentialsFile: get("FCM_CREDENTIALS_FILE", ""),
		FCMCredentialsJSON: get("FCM_CREDENTIALS_JSON", ""),

		S3Endpoint:  get("S3_ENDPOINT", ""),
		S3Bucket:    get("S3_BUCKET", ""),
		S3Region:    get("S3_REGION", "auto"),
		S3AccessKey: get("S3_ACCESS_KEY", ""),
		S3SecretKey: get("S3_SECRET_KEY", ""),

		BackupPassphrase: get("BACKUP_PASSPHRASE", ""),
	}

	var err error
	if c.SessionTTL, err = getDuration("SESSION_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if c.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if c.BackupHour, err = getInt("BACKUP_HOUR", 3); err != nil {
		return nil, err
	}
	if c.BackupHour < 0 || c.BackupHour > 23 {
		return nil, fmt.Errorf("%sBACKUP_HOUR must be 0-23, got %d", prefix, c.BackupHour)
	}
	if c.BackupRetentionDays, err = getInt("BACKUP_RETENTION_DAYS", 30); err != nil {
		return nil, err
	}
	if c.RateBurst, err = getInt("RATE_BURST", 40); err != nil {
		return nil, err
	}
	rate := get("RATE_LIMIT", "20")
	if c.RateLimit, err = strconv.ParseFloat(rate, 64); err != nil {
		return nil, fmt.Errorf("%sRATE_LIMIT: %w", prefix, err)
	}
	for _, o := range strings.Split(get("CORS_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.CORSOrigins = append(c.CORSOrigins, o)
		}
	}
	return c, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("%sJWT_SECRET must be at least 32 characters", prefix)
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return fmt.Errorf("%sVAPID_PUBLIC_KEY and %sVAPID_PRIVATE_KEY must be set together", prefix, prefix)
	}
	return nil
}

func get(key, def string) string {
	if v, ok := os.LookupEnv(prefix + key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", prefix, key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", prefix, key, err)
	}
	return d, nil
}
