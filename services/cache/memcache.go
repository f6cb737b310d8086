package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
	}
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// ttlSeconds converts a duration to memcache's whole-second granularity,
// rounding up. Memcache treats 0 as "never expire", so a positive
// sub-second TTL must become 1, not 0: a pacing token that never expires
// would block its retailer forever.
func ttlSeconds(expiration time.Duration) int32 {
	if expiration <= 0 {
		return 0
	}
	return int32((expiration + time.Second - 1) / time.Second)
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: ttlSeconds(expiration),
	})
}

// Add stores a value only if the key is absent; memcache's add is atomic
// across clients, which is what makes it usable as a pacing token
func (m *MemcacheService) Add(key string, value []byte, expiration time.Duration) error {
	err := m.client.Add(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: ttlSeconds(expiration),
	})
	if errors.Is(err, memcache.ErrNotStored) {
		return ErrNotStored
	}
	return err
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	return m.client.Delete(key)
}
