package secrets

import (
	"sync"
	"time"
)

// secretCache is a small in-memory TTL cache shared by the remote secret
// sources. The webhook secret is read on every delivery, so a short cache
// keeps the secret backend off the hot path without making rotation painful.
type secretCache struct {
	mu        sync.RWMutex
	value     string
	expiresAt time.Time
	enabled   bool
	ttl       time.Duration
}

func newSecretCache(enabled bool, ttl time.Duration) *secretCache {
	return &secretCache{enabled: enabled, ttl: ttl}
}

func (c *secretCache) get() (string, bool) {
	if !c.enabled {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == "" || time.Now().After(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

func (c *secretCache) set(value string) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.expiresAt = time.Now().Add(c.ttl)
}
