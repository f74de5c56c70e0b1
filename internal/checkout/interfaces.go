// Package checkout orchestrates a single ticket checkout: it resolves the
// session user, picks the render branch, creates card payment intents,
// drives the card form state machine and handles free-ticket claims.
package checkout

import (
	"context"
	"net/http"
	"sync"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/models"
)

// API is the subset of the backend client the checkout flow needs
type API interface {
	Do(ctx context.Context, req backend.Request, out interface{}) (*backend.Result, error)
}

// SessionCache holds the resolved session user for one browser session.
// Only the AuthGate writes to it.
type SessionCache interface {
	User() *models.SessionUser
	StoreUser(user *models.SessionUser) error
	SetToken(token string)
	Token() string
	Clear() error
}

// ConfirmRequest is a card confirmation for one client secret
type ConfirmRequest struct {
	ClientSecret  string
	PaymentMethod string
	ReturnURL     string
}

// Confirmer confirms a card payment with the payment provider
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (*models.ConfirmResult, error)
}

// Notifier receives user-visible toasts
type Notifier interface {
	Notify(toast models.Toast)
}

// Endpoints lists candidate paths for each backend call, in the order they
// are tried.
type Endpoints struct {
	Me           []string
	CreateIntent []string
	FreeTicket   []string
}

// DefaultEndpoints returns the prefixed paths followed by their unprefixed
// aliases.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Me:           []string{"/api/me", "/me"},
		CreateIntent: []string{"/api/payment/create-intent", "/payment/create-intent"},
		FreeTicket:   []string{"/api/tickets/free", "/tickets/free"},
	}
}

// Credentials carries the headers (cookies, bearer token) that identify the
// browser session to the backend. The web layer refreshes them on each
// request.
type Credentials struct {
	mu     sync.RWMutex
	header http.Header
}

// NewCredentials creates credentials from a header set
func NewCredentials(header http.Header) *Credentials {
	c := &Credentials{}
	c.Set(header)
	return c
}

// Set replaces the stored headers
func (c *Credentials) Set(header http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.header = header.Clone()
	if c.header == nil {
		c.header = http.Header{}
	}
}

// Header returns a copy of the stored headers
func (c *Credentials) Header() http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.header.Clone()
}

// SetBearer sets the Authorization header to a bearer token
func (c *Credentials) SetBearer(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.header.Set("Authorization", "Bearer "+token)
}

// SetFromRequest copies the identifying headers of an incoming request
func (c *Credentials) SetFromRequest(r *http.Request) {
	header := http.Header{}
	if cookie := r.Header.Get("Cookie"); cookie != "" {
		header.Set("Cookie", cookie)
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		header.Set("Authorization", auth)
	}
	c.Set(header)
}
