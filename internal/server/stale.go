package server

import (
	"net/http"
	"sync"
)

const maxStaleEntries = 512

// staleCache keeps the last good result of each section and
// request so a failing refresh can still show data.
type staleCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]sectionResponse
}

func newStaleCache(max int) *staleCache {
	return &staleCache{max: max, entries: make(map[string]sectionResponse)}
}

func (c *staleCache) get(key string) (sectionResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// put stores v under key. When full, an arbitrary entry is
// evicted.
func (c *staleCache) put(key string, v sectionResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.max {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = v
}

// staleKey identifies a section request by profile and its
// canonical query string.
func (s *Server) staleKey(name string, r *http.Request) string {
	return s.profileName(r) + "|" + name + "?" + r.URL.Query().Encode()
}
