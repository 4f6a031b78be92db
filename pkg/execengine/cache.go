package execengine

import (
	"sync"

	"github.com/mcpgas/mcp-gas/pkg/constants"
)

// SessionCache is the process-wide, single-writer/many-reader
// projectId → deploymentURL map described in §3 and §5. It is never
// persisted and is wrapped as an explicit owner type per the design note
// on global mutable state — no package-level map, no free functions.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[constants.ProjectID]string
}

// NewSessionCache constructs an empty cache. Tests construct independent
// instances; no test may share state implicitly.
func NewSessionCache() *SessionCache {
	return &SessionCache{entries: make(map[constants.ProjectID]string)}
}

// Get returns the cached URL for a project, if any.
func (c *SessionCache) Get(projectID constants.ProjectID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.entries[projectID]
	return url, ok
}

// Set stores a freshly constructed URL. Writes occur only after a
// successful URL construction (§5).
func (c *SessionCache) Set(projectID constants.ProjectID, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[projectID] = url
}

// Evict removes a project's cached URL, used on authentication
// replacement or explicit reset.
func (c *SessionCache) Evict(projectID constants.ProjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}

// Reset clears every cached entry, e.g. on full auth replacement.
func (c *SessionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[constants.ProjectID]string)
}
