// Package prefs holds device-scoped user preferences: a small key/value slot
// that survives reloads on one device but is not shared across devices.
package prefs

import "sync"

// ActiveOrgKey is the key holding the last active organization id.
const ActiveOrgKey = "active_org_id"

// Cache is a device-scoped key/value slot. Writes are plain overwrites.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Memory is an in-process Cache.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory { return &Memory{m: map[string]string{}} }

func (c *Memory) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *Memory) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func (c *Memory) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}
