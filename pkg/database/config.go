package database

import (
	"os"
	"strconv"
	"time"
)

// LoadConfigFromEnv reads DB_* environment variables, falling back to
// sane local-development defaults, mirroring the teacher's pattern of
// keeping the database config independent from the YAML config file so
// it can be overridden per-deployment via the environment alone.
func LoadConfigFromEnv() Config {
	return Config{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envIntOr("DB_PORT", 5432),
		User:     envOr("DB_USER", "datingcore"),
		Password: envOr("DB_PASSWORD", "datingcore"),
		Database: envOr("DB_NAME", "datingcore"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),

		MaxOpenConns:    envIntOr("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envIntOr("DB_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: envDurationOr("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnMaxIdleTime: envDurationOr("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
