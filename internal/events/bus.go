// Package events is a typed in-process publish/subscribe bus used to signal
// auth state changes and requests to open the sign-in modal between
// otherwise independent components.
package events

import (
	"sync"

	"sg-checkout/internal/models"
)

// AuthChanged is published whenever the session user is resolved, refreshed
// or cleared. User is nil when the session ended or is unknown.
type AuthChanged struct {
	SessionID string
	User      *models.SessionUser
	// Resolved is true when User reflects a completed session lookup and
	// subscribers may adopt it without fetching again.
	Resolved bool
}

// OpenAuthModal asks the auth modal to open on a tab and to return the user
// to RedirectPath afterwards.
type OpenAuthModal struct {
	SessionID    string
	Tab          string
	RedirectPath string
}

// Auth modal tabs
const (
	TabSignIn   = "signin"
	TabRegister = "register"
)

// Bus fans events out to subscribers synchronously.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	auth   map[int]func(AuthChanged)
	modal  map[int]func(OpenAuthModal)
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		auth:  make(map[int]func(AuthChanged)),
		modal: make(map[int]func(OpenAuthModal)),
	}
}

// SubscribeAuthChanged registers fn and returns a function that removes it.
func (b *Bus) SubscribeAuthChanged(fn func(AuthChanged)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.auth[id] = fn
	return b.remover(func() { delete(b.auth, id) })
}

// SubscribeOpenAuthModal registers fn and returns a function that removes it.
func (b *Bus) SubscribeOpenAuthModal(fn func(OpenAuthModal)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.modal[id] = fn
	return b.remover(func() { delete(b.modal, id) })
}

func (b *Bus) remover(del func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			del()
			b.mu.Unlock()
		})
	}
}

// PublishAuthChanged delivers ev to every auth subscriber. Handlers run
// outside the bus lock so they may subscribe or unsubscribe.
func (b *Bus) PublishAuthChanged(ev AuthChanged) {
	b.mu.RLock()
	handlers := make([]func(AuthChanged), 0, len(b.auth))
	for _, fn := range b.auth {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// PublishOpenAuthModal delivers ev to every modal subscriber.
func (b *Bus) PublishOpenAuthModal(ev OpenAuthModal) {
	b.mu.RLock()
	handlers := make([]func(OpenAuthModal), 0, len(b.modal))
	for _, fn := range b.modal {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Subscribers returns the number of live subscriptions (auth, modal).
func (b *Bus) Subscribers() (int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.auth), len(b.modal)
}
