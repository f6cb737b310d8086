package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Postgres configuration
	DatabaseURL string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Health thresholds (consecutive failures)
	DegradedThreshold int
	FailedThreshold   int

	// Default duration for a pause without an explicit duration
	DefaultPauseDuration time.Duration

	// Dispatch configuration
	DefaultQueue string
	StaggerDelay time.Duration
	FetchTimeout time.Duration
	WorkerCount  int
	PollInterval time.Duration

	// Scheduler configuration
	ScheduleInterval time.Duration
	SweepInterval    time.Duration
	ScheduleLockTTL  time.Duration

	// Unlocker proxy pool, comma-separated proxy URLs; empty disables the
	// unlocker adapter
	ProxyURLs []string

	// Metrics endpoint listen address
	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "4"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "5000"))
	degraded, _ := strconv.Atoi(getEnv("DEGRADED_THRESHOLD", "3"))
	failed, _ := strconv.Atoi(getEnv("FAILED_THRESHOLD", "8"))
	pauseMinutes, _ := strconv.Atoi(getEnv("DEFAULT_PAUSE_MINUTES", "360"))
	staggerMs, _ := strconv.Atoi(getEnv("DISPATCH_STAGGER_MS", "1500"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "20"))
	workers, _ := strconv.Atoi(getEnv("WORKER_COUNT", "4"))
	pollMs, _ := strconv.Atoi(getEnv("QUEUE_POLL_MS", "500"))
	scheduleHours, _ := strconv.Atoi(getEnv("SCHEDULE_INTERVAL_HOURS", "24"))
	sweepMinutes, _ := strconv.Atoi(getEnv("SWEEP_INTERVAL_MINUTES", "60"))
	lockMinutes, _ := strconv.Atoi(getEnv("SCHEDULE_LOCK_TTL_MINUTES", "120"))

	return Config{
		DatabaseURL:          getEnv("DATABASE_URL", "postgres://localhost:5432/crawlworker?sslmode=disable"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "extracted"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		DegradedThreshold:    degraded,
		FailedThreshold:      failed,
		DefaultPauseDuration: time.Duration(pauseMinutes) * time.Minute,
		DefaultQueue:         getEnv("DEFAULT_QUEUE", "crawl"),
		StaggerDelay:         time.Duration(staggerMs) * time.Millisecond,
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		WorkerCount:          workers,
		PollInterval:         time.Duration(pollMs) * time.Millisecond,
		ScheduleInterval:     time.Duration(scheduleHours) * time.Hour,
		SweepInterval:        time.Duration(sweepMinutes) * time.Minute,
		ScheduleLockTTL:      time.Duration(lockMinutes) * time.Minute,
		ProxyURLs:            splitList(getEnv("PROXY_URLS", "")),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9107"),
		Environment:          getEnv("CRAWLWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values that would misbehave at runtime
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must not be empty")
	}
	if c.DegradedThreshold < 1 {
		return fmt.Errorf("DEGRADED_THRESHOLD must be at least 1, got %d", c.DegradedThreshold)
	}
	if c.FailedThreshold <= c.DegradedThreshold {
		return fmt.Errorf("FAILED_THRESHOLD (%d) must be greater than DEGRADED_THRESHOLD (%d)",
			c.FailedThreshold, c.DegradedThreshold)
	}
	if c.DefaultPauseDuration <= 0 {
		return fmt.Errorf("DEFAULT_PAUSE_MINUTES must be positive")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.WorkerCount)
	}
	if c.ScheduleLockTTL <= 0 {
		return fmt.Errorf("SCHEDULE_LOCK_TTL_MINUTES must be positive")
	}
	return nil
}

// splitList splits a comma-separated env value, dropping empty entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
