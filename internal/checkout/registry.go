package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sg-checkout/internal/models"
)

// MaxPagesPerSession bounds the checkout pages a browser session keeps open
// at once; opening another closes the least recently used one.
const MaxPagesPerSession = 16

// PageID derives the id of the checkout page opened with checkout in a
// browser session. Reloading the same URL maps back to the same page.
func PageID(sessionID string, checkout models.CheckoutContext) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sessionID+"\n"+checkout.Query().Encode())).String()
}

type registryEntry struct {
	controller *Controller
	lastSeen   time.Time
}

// Registry keeps one controller per checkout page of a browser session and
// closes controllers that have been idle for longer than the TTL.
type Registry struct {
	mutex    sync.Mutex
	sessions map[string]map[string]*registryEntry
	cfg      Config
	deps     Deps
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry building controllers from cfg and deps
func NewRegistry(cfg Config, deps Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{
		sessions: make(map[string]map[string]*registryEntry),
		cfg:      cfg,
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the controller for a checkout page, creating it on first use.
// The second result is true when the controller was just created and still
// needs Start.
func (r *Registry) Get(sessionID, checkoutID string) (*Controller, bool) {
	r.mutex.Lock()

	pages := r.sessions[sessionID]
	if entry, ok := pages[checkoutID]; ok {
		entry.lastSeen = r.now()
		r.mutex.Unlock()
		return entry.controller, false
	}
	if pages == nil {
		pages = make(map[string]*registryEntry)
		r.sessions[sessionID] = pages
	}

	var evicted *Controller
	if len(pages) >= MaxPagesPerSession {
		evicted = evictOldest(pages)
	}

	controller := NewController(sessionID, nil, r.cfg, r.deps)
	controller.checkoutID = checkoutID
	controller.log = controller.log.WithField("checkout_id", checkoutID)
	pages[checkoutID] = &registryEntry{controller: controller, lastSeen: r.now()}
	r.mutex.Unlock()

	if evicted != nil {
		evicted.Close()
	}
	return controller, true
}

func evictOldest(pages map[string]*registryEntry) *Controller {
	var oldestID string
	var oldest *registryEntry
	for id, entry := range pages {
		if oldest == nil || entry.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, entry
		}
	}
	if oldest == nil {
		return nil
	}
	delete(pages, oldestID)
	return oldest.controller
}

// Lookup returns an existing controller without creating one
func (r *Registry) Lookup(sessionID, checkoutID string) (*Controller, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	entry, ok := r.sessions[sessionID][checkoutID]
	if !ok {
		return nil, false
	}
	entry.lastSeen = r.now()
	return entry.controller, true
}

// Remove closes and forgets the controller for one checkout page
func (r *Registry) Remove(sessionID, checkoutID string) {
	r.mutex.Lock()
	pages := r.sessions[sessionID]
	entry, ok := pages[checkoutID]
	delete(pages, checkoutID)
	if len(pages) == 0 {
		delete(r.sessions, sessionID)
	}
	r.mutex.Unlock()

	if ok {
		entry.controller.Close()
	}
}

// Len returns the number of live controllers
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	n := 0
	for _, pages := range r.sessions {
		n += len(pages)
	}
	return n
}

// Sweep closes controllers idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mutex.Lock()
	var expired []*Controller
	for sessionID, pages := range r.sessions {
		for id, entry := range pages {
			if entry.lastSeen.Before(cutoff) {
				expired = append(expired, entry.controller)
				delete(pages, id)
			}
		}
		if len(pages) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	r.mutex.Unlock()

	for _, c := range expired {
		c.Close()
	}
	return len(expired)
}

// Run sweeps periodically until ctx is cancelled, then closes every
// remaining controller.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.deps.Log.WithField("subsystem", "registry").WithField("removed", n).Debug("swept idle checkout pages")
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mutex.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]map[string]*registryEntry)
	r.mutex.Unlock()

	for _, pages := range sessions {
		for _, entry := range pages {
			entry.controller.Close()
		}
	}
}
