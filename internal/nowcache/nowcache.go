// Package nowcache holds the process-wide cached wall-clock time used to
// stamp every HTTP response's Date header, refreshed by a dedicated
// goroutine every 500ms rather than formatting time.Now() per request.
package nowcache

import (
	"net/http"
	"sync"
	"time"
)

// UpdateInterval matches the original's now-worker tick.
const UpdateInterval = 500 * time.Millisecond

// Cache is a shared-lock-read, exclusive-lock-write cached formatted time.
type Cache struct {
	mu        sync.RWMutex
	formatted string
	unix      int64
}

// New returns a cache pre-populated with the current time so that the very
// first response (before the background updater's first tick) still has a
// valid Date header.
func New() *Cache {
	c := &Cache{}
	c.update()
	return c
}

func (c *Cache) update() {
	now := time.Now().UTC()
	formatted := now.Format(http.TimeFormat)
	unix := now.Unix()
	c.mu.Lock()
	c.formatted = formatted
	c.unix = unix
	c.mu.Unlock()
}

// Date returns the pre-formatted RFC 1123 (GMT) Date header value.
func (c *Cache) Date() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.formatted
}

// Unix returns the cached wall-clock time as Unix seconds, used to stamp
// newly created claims without an extra time.Now() call per request.
func (c *Cache) Unix() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unix
}

// Run refreshes the cache every UpdateInterval until shutdown fires.
func (c *Cache) Run(shutdown <-chan struct{}) {
	ticker := time.NewTicker(UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.update()
		case <-shutdown:
			return
		}
	}
}
