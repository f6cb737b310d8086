package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, 3, config.DegradedThreshold)
	assert.Equal(t, 8, config.FailedThreshold)
	assert.Equal(t, 6*time.Hour, config.DefaultPauseDuration)
	assert.Equal(t, 1500*time.Millisecond, config.StaggerDelay)
	assert.Equal(t, 24*time.Hour, config.ScheduleInterval)
	assert.Equal(t, "crawl", config.DefaultQueue)

	// Test with environment variables
	os.Setenv("REDIS_ADDR", "redis.example.com:6379")
	os.Setenv("REDIS_DB", "1")
	os.Setenv("DEGRADED_THRESHOLD", "5")
	os.Setenv("FAILED_THRESHOLD", "12")
	os.Setenv("DEFAULT_PAUSE_MINUTES", "90")
	os.Setenv("DISPATCH_STAGGER_MS", "250")

	config = LoadConfig()
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 5, config.DegradedThreshold)
	assert.Equal(t, 12, config.FailedThreshold)
	assert.Equal(t, 90*time.Minute, config.DefaultPauseDuration)
	assert.Equal(t, 250*time.Millisecond, config.StaggerDelay)

	// Clean up
	os.Unsetenv("REDIS_ADDR")
	os.Unsetenv("REDIS_DB")
	os.Unsetenv("DEGRADED_THRESHOLD")
	os.Unsetenv("FAILED_THRESHOLD")
	os.Unsetenv("DEFAULT_PAUSE_MINUTES")
	os.Unsetenv("DISPATCH_STAGGER_MS")
}

func TestProxyURLList(t *testing.T) {
	config := LoadConfig()
	assert.Empty(t, config.ProxyURLs)

	os.Setenv("PROXY_URLS", "http://proxy-a:8080, http://proxy-b:8080,")
	defer os.Unsetenv("PROXY_URLS")

	config = LoadConfig()
	assert.Equal(t, []string{"http://proxy-a:8080", "http://proxy-b:8080"}, config.ProxyURLs)
}

func TestValidate(t *testing.T) {
	config := LoadConfig()
	assert.NoError(t, config.Validate())

	bad := config
	bad.FailedThreshold = bad.DegradedThreshold
	assert.Error(t, bad.Validate())

	bad = config
	bad.DatabaseURL = ""
	assert.Error(t, bad.Validate())

	bad = config
	bad.WorkerCount = 0
	assert.Error(t, bad.Validate())
}
