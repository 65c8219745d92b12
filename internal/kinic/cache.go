package kinic

import (
	"log"
	"sync"
)

// Key identifies one cached SDK handle: the identity it signs with and
// whether it routes to the Internet Computer or a local replica.
type Key struct {
	Identity string
	UseIC    bool
}

// Factory constructs a Handle for a key. The default factory builds an
// HTTP bridge handle; tests inject fakes.
type Factory func(identity string, useIC bool) (Handle, error)

// Cache holds at most one handle per key. Construction failures are
// logged and NOT cached: SDK construction failure is assumed transient
// (a missing local credential agent, a bridge restart), so every Get
// retries it. Operation-level failures, not construction, drive the
// router's permanent demotion decision.
type Cache struct {
	mu      sync.Mutex
	handles map[Key]Handle
	factory Factory
}

// NewCache creates an empty handle cache backed by factory.
func NewCache(factory Factory) *Cache {
	return &Cache{
		handles: make(map[Key]Handle),
		factory: factory,
	}
}

// Get returns the cached handle for (identity, useIC), constructing it
// on first use. It returns nil — never an error — when construction
// fails; callers treat nil as "backend does not apply right now".
func (c *Cache) Get(identity string, useIC bool) Handle {
	key := Key{Identity: identity, UseIC: useIC}

	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[key]; ok {
		return h
	}

	h, err := c.factory(identity, useIC)
	if err != nil {
		log.Printf("kinic: failed to construct sdk handle for %s (ic=%t): %v", identity, useIC, err)
		return nil
	}
	c.handles[key] = h
	return h
}

// Len reports the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}
