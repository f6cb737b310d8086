package cache

import (
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	_, err := mc.client.Get("test")
	if err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}

	err = mc.Set("test_key", []byte("test_value"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("test_key")
	assert.NoError(t, err)
	assert.Equal(t, "test_value", string(value))

	// Add must refuse an existing key
	err = mc.Add("test_key", []byte("other"), 1*time.Second)
	assert.ErrorIs(t, err, ErrNotStored)

	err = mc.Delete("test_key")
	assert.NoError(t, err)

	_, err = mc.Get("test_key")
	assert.Error(t, err)
}

func TestTTLSeconds(t *testing.T) {
	// Sub-second durations round up to one second; 0 would mean
	// "never expire" to memcached
	assert.Equal(t, int32(1), ttlSeconds(500*time.Millisecond))
	assert.Equal(t, int32(1), ttlSeconds(time.Second))
	assert.Equal(t, int32(2), ttlSeconds(1500*time.Millisecond))
	assert.Equal(t, int32(30), ttlSeconds(30*time.Second))
	assert.Equal(t, int32(0), ttlSeconds(0))
	assert.Equal(t, int32(0), ttlSeconds(-time.Second))
}

func TestMemoryService(t *testing.T) {
	m := NewMemoryService()

	assert.NoError(t, m.Set("k", []byte("v"), time.Minute))
	value, err := m.Get("k")
	assert.NoError(t, err)
	assert.Equal(t, "v", string(value))

	assert.ErrorIs(t, m.Add("k", []byte("other"), time.Minute), ErrNotStored)
	assert.NoError(t, m.Delete("k"))
	assert.NoError(t, m.Add("k", []byte("other"), time.Minute))

	// Expired entries behave as absent
	assert.NoError(t, m.Set("ttl", []byte("x"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, err = m.Get("ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, m.Add("ttl", []byte("y"), time.Minute))
}
