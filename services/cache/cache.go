package cache

import (
	"errors"
	"time"
)

// ErrNotStored is returned by Add when the key already exists
var ErrNotStored = errors.New("cache: key already exists")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Add stores a value only if the key does not already exist, atomically.
	// Returns ErrNotStored when the key is present. This is the primitive
	// request pacing is built on.
	Add(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
