package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseDSN string
	Env         string
	// SharePhone is the optional default destination for WhatsApp share
	// links (digits only after normalization; empty means a bare share).
	SharePhone string
	// BillTTL is how long an idle bill session is kept before being dropped.
	BillTTL time.Duration
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (loaded by main) > default.
func Load() Config {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "file:billfold.db")
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.SharePhone = getEnv("SHARE_PHONE", "")
	cfg.BillTTL = getDuration("BILL_SESSION_TTL", 4*time.Hour)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %s", key, v)
			return def
		}
		return d
	}
	return def
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %s", key, v)
			return def
		}
		return b
	}
	return def
}
