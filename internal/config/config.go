package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration, loaded from the environment once at
// startup and passed by reference to whatever needs it.
type Config struct {
	Port      string
	DBDSN     string
	RedisAddr string
	RedisDB   int
	NATSURL   string
	JWTSecret string

	// scheduler tuning
	WorkerCount  int
	PollInterval time.Duration
	StaleAfter   time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Port:         port(),
		DBDSN:        envOr("DB_DSN", "auction:auction@tcp(127.0.0.1:3306)/auction?charset=utf8mb4&parseTime=True&loc=UTC"),
		RedisAddr:    envOr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:      envInt("REDIS_DB", 0),
		NATSURL:      envOr("NATS_URL", "nats://127.0.0.1:4222"),
		JWTSecret:    envOr("JWT_SECRET", "default-secret"),
		WorkerCount:  envInt("SCHEDULER_WORKERS", 5),
		PollInterval: envDuration("SCHEDULER_POLL_INTERVAL", time.Second),
		StaleAfter:   envDuration("SCHEDULER_STALE_AFTER", 5*time.Minute),
	}
}

// port returns the listen address from env or defaults to ":8080"
func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return fmt.Sprintf(":%s", p)
	}
	return ":8080"
}

func envOr(key, fallback string) string {
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
