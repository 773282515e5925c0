package auth

import (
	"fmt"
	"sync"
	"testing"
)

func TestCachePutGet(t *testing.T) {
	c := NewCache()
	u := &User{ID: 1, TwitchID: "77", Username: "viewer1"}
	c.Put(u)

	got, ok := c.GetByID(1)
	if !ok || got != u {
		t.Fatalf("GetByID(1) = %v, %v; want cached user", got, ok)
	}
	got, ok = c.GetByTwitchID("77")
	if !ok || got != u {
		t.Fatalf("GetByTwitchID(77) = %v, %v; want cached user", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCachePutRemovesStaleMappings(t *testing.T) {
	c := NewCache()
	c.Put(&User{ID: 1, TwitchID: "77"})
	c.Put(&User{ID: 2, TwitchID: "88"})

	// Same internal id re-keyed under a new twitch id: the old twitch id
	// must not keep resolving.
	c.Put(&User{ID: 1, TwitchID: "99"})
	if _, ok := c.GetByTwitchID("77"); ok {
		t.Error("stale twitch id 77 still resolves after re-key")
	}

	// A twitch id claimed by a different internal id: the displaced id must
	// not keep resolving.
	c.Put(&User{ID: 3, TwitchID: "88"})
	if _, ok := c.GetByID(2); ok {
		t.Error("displaced internal id 2 still resolves")
	}

	assertIndicesConsistent(t, c)
}

func TestCacheEvict(t *testing.T) {
	c := NewCache()
	u := &User{ID: 5, TwitchID: "55"}
	c.Put(u)
	c.Evict(u)

	if _, ok := c.GetByID(5); ok {
		t.Error("GetByID after evict should miss")
	}
	if _, ok := c.GetByTwitchID("55"); ok {
		t.Error("GetByTwitchID after evict should miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache()
	for i := 1; i <= 10; i++ {
		c.Put(&User{ID: int64(i), TwitchID: fmt.Sprintf("t%d", i)})
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.GetByTwitchID("t3"); ok {
		t.Error("entry survived Clear")
	}
}

func TestCacheNilSafe(t *testing.T) {
	c := NewCache()
	c.Put(nil)
	c.Evict(nil)
	if c.Len() != 0 {
		t.Errorf("Len() = %d after nil ops, want 0", c.Len())
	}
}

// TestCacheConcurrentAccess hammers the cache from many goroutines and then
// verifies the two indices still describe the same set of users.
func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	users := make([]*User, 20)
	for i := range users {
		users[i] = &User{ID: int64(i + 1), TwitchID: fmt.Sprintf("tw%d", i+1)}
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				u := users[(seed+i)%len(users)]
				switch i % 4 {
				case 0:
					c.Put(u)
				case 1:
					c.GetByID(u.ID)
				case 2:
					c.GetByTwitchID(u.TwitchID)
				case 3:
					c.Evict(u)
				}
			}
		}(g)
	}
	wg.Wait()

	assertIndicesConsistent(t, c)
}

func assertIndicesConsistent(t *testing.T, c *Cache) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.byID) != len(c.byTwitchID) {
		t.Fatalf("index sizes diverged: byID=%d byTwitchID=%d", len(c.byID), len(c.byTwitchID))
	}
	for id, u := range c.byID {
		other, ok := c.byTwitchID[u.TwitchID]
		if !ok {
			t.Errorf("user %d present in byID but missing from byTwitchID", id)
			continue
		}
		if other != u {
			t.Errorf("indices disagree for user %d", id)
		}
	}
}
