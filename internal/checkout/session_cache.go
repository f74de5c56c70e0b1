package checkout

import (
	"sync"

	"sg-checkout/internal/models"
)

// Keys of the values kept for a browser session
const (
	SessionKeyUser      = "user"
	SessionKeyToken     = "firebaseToken"
	SessionKeySessionID = "sg_session_id"
)

// MemorySessionCache keeps the session user in memory for the lifetime of a
// checkout controller.
type MemorySessionCache struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewMemorySessionCache creates a cache for the given checkout session id
func NewMemorySessionCache(sessionID string) *MemorySessionCache {
	return &MemorySessionCache{
		values: map[string]interface{}{SessionKeySessionID: sessionID},
	}
}

// User returns the cached user, if any
func (c *MemorySessionCache) User() *models.SessionUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, _ := c.values[SessionKeyUser].(*models.SessionUser)
	return user
}

// StoreUser caches the user
func (c *MemorySessionCache) StoreUser(user *models.SessionUser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user == nil {
		delete(c.values, SessionKeyUser)
		return nil
	}
	copied := *user
	c.values[SessionKeyUser] = &copied
	return nil
}

// SetToken stores the bearer token handed over by the auth provider
func (c *MemorySessionCache) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[SessionKeyToken] = token
}

// Token returns the stored bearer token
func (c *MemorySessionCache) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, _ := c.values[SessionKeyToken].(string)
	return token
}

// Clear drops the user and token but keeps the session id
func (c *MemorySessionCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, SessionKeyUser)
	delete(c.values, SessionKeyToken)
	return nil
}
