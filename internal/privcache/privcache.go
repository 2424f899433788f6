// Package privcache caches username → privileges lookups against the
// platform API, so privilege-gated paths that only know a username do not
// hammer the backend.
package privcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xnyo/fokabot/internal/osu"
	"github.com/xnyo/fokabot/internal/ripple"
)

// TTL is how long a cached privileges entry stays fresh.
const TTL = 30 * time.Minute

type entry struct {
	privileges osu.Privileges
	addedAt    time.Time
}

func (e entry) expired(now time.Time) bool { return now.Sub(e.addedAt) > TTL }

// Cache is the privileges cache. Safe for concurrent use.
type Cache struct {
	client *ripple.Client
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	data map[string]entry
}

// New creates a cache over the platform API client.
func New(client *ripple.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client: client,
		logger: logger,
		now:    time.Now,
		data:   make(map[string]entry),
	}
}

// Get returns the user's privileges, fetching from the platform API on a
// miss or an expired entry. ok is false when the user does not exist.
func (c *Cache) Get(ctx context.Context, username string) (osu.Privileges, bool, error) {
	key := osu.SafeUsername(username)

	c.mu.Lock()
	e, hit := c.data[key]
	c.mu.Unlock()
	if hit && !e.expired(c.now()) {
		return e.privileges, true, nil
	}

	users, err := c.client.GetUser(ctx, key)
	if err != nil {
		return 0, false, err
	}
	if len(users) == 0 {
		return 0, false, nil
	}
	p := osu.Privileges(users[0].Privileges)

	c.mu.Lock()
	c.data[key] = entry{privileges: p, addedAt: c.now()}
	c.mu.Unlock()
	return p, true, nil
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.data {
		if e.expired(now) {
			delete(c.data, k)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("purged expired privilege entries", "count", removed)
	}
	return removed
}

// Len returns the number of entries, fresh or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
