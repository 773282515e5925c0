package auth

import "sync"

// Cache is the process-wide user cache, indexed by both Twitch id and
// internal id. A single mutex covers both maps so no reader can observe one
// index updated and the other stale. Critical sections are map operations
// only; store and network calls happen outside the lock.
//
// The cache is unbounded: entries leave only through Evict or Clear.
type Cache struct {
	mu         sync.Mutex
	byTwitchID map[string]*User
	byID       map[int64]*User
}

func NewCache() *Cache {
	return &Cache{
		byTwitchID: make(map[string]*User),
		byID:       make(map[int64]*User),
	}
}

// GetByTwitchID returns the cached user for a Twitch id.
func (c *Cache) GetByTwitchID(twitchID string) (*User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.byTwitchID[twitchID]
	return u, ok
}

// GetByID returns the cached user for an internal id.
func (c *Cache) GetByID(id int64) (*User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.byID[id]
	return u, ok
}

// Put inserts or overwrites u under both indices atomically. Stale mappings
// pointing at a different counterpart key are removed first, so the two
// indices always describe the same set of users.
func (c *Cache) Put(u *User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.byID[u.ID]; ok && prev.TwitchID != u.TwitchID {
		delete(c.byTwitchID, prev.TwitchID)
	}
	if prev, ok := c.byTwitchID[u.TwitchID]; ok && prev.ID != u.ID {
		delete(c.byID, prev.ID)
	}
	c.byID[u.ID] = u
	c.byTwitchID[u.TwitchID] = u
}

// Evict removes u from both indices atomically.
func (c *Cache) Evict(u *User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, u.ID)
	delete(c.byTwitchID, u.TwitchID)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTwitchID = make(map[string]*User)
	c.byID = make(map[int64]*User)
}

// Len reports the number of cached users.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}
