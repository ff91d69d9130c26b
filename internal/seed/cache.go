package seed

import "sync"

// Cache maps canonical content hashes to the identifiers the store assigned
// to them. One Cache lives for one seeding run; create a new one per run.
type Cache struct {
	mu  sync.RWMutex
	ids map[string]any
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{ids: make(map[string]any)}
}

// Get returns the identifier recorded for key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.ids[key]
	return id, ok
}

// Put records id for key, replacing any previous identifier.
func (c *Cache) Put(key string, id any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids[key] = id
}

// Len returns the number of recorded hashes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.ids)
}

// Clear forgets every recorded hash.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids = make(map[string]any)
}
