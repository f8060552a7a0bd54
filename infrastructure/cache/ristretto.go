package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Config sizes the cache
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// DefaultConfig holds roughly ten thousand small entries
func DefaultConfig() Config {
	return Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	}
}

// RistrettoCache implements ports.Cache on top of ristretto. Every entry has
// cost 1, so MaxCost is the entry budget.
type RistrettoCache struct {
	cache *ristretto.Cache
}

// NewRistrettoCache creates a new bounded in-memory cache
func NewRistrettoCache(cfg Config) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &RistrettoCache{cache: c}, nil
}

// Get retrieves a value from cache
func (c *RistrettoCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.cache.Get(key)
}

// Set stores a value in cache with TTL in seconds. Writes are buffered and
// may be dropped under contention; Set waits for the buffer so a following
// Get observes the value.
func (c *RistrettoCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	if ttl <= 0 {
		return nil
	}
	c.cache.SetWithTTL(key, value, 1, time.Duration(ttl)*time.Second)
	c.cache.Wait()
	return nil
}

// Delete removes a value from cache
func (c *RistrettoCache) Delete(ctx context.Context, key string) error {
	c.cache.Del(key)
	return nil
}

// Clear removes all values from cache
func (c *RistrettoCache) Clear(ctx context.Context) error {
	c.cache.Clear()
	return nil
}

// Close stops the cache's background goroutines
func (c *RistrettoCache) Close() {
	c.cache.Close()
}
