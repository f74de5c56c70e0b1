package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/events"
	"sg-checkout/internal/models"
)

// AuthState is a snapshot of the gate
type AuthState struct {
	User     *models.SessionUser
	Checking bool
}

// Authenticated reports whether a user has been resolved
func (s AuthState) Authenticated() bool {
	return !s.Checking && s.User != nil
}

// AuthGate resolves the session user against the backend and keeps the
// answer in the session cache. Any failure resolves to "no user".
type AuthGate struct {
	api       API
	creds     *Credentials
	cache     SessionCache
	bus       *events.Bus
	sessionID string
	paths     []string
	timeout   time.Duration
	log       *logrus.Entry

	mu       sync.RWMutex
	user     *models.SessionUser
	checking bool

	unsubscribe func()
}

// NewAuthGate creates a gate in the checking state and subscribes it to
// auth changes for its session.
func NewAuthGate(api API, creds *Credentials, cache SessionCache, bus *events.Bus, sessionID string, paths []string, log *logrus.Logger) *AuthGate {
	g := &AuthGate{
		api:       api,
		creds:     creds,
		cache:     cache,
		bus:       bus,
		sessionID: sessionID,
		paths:     paths,
		timeout:   10 * time.Second,
		log:       log.WithFields(logrus.Fields{"subsystem": "auth_gate", "session_id": sessionID}),
		checking:  true,
	}
	if bus != nil {
		g.unsubscribe = bus.SubscribeAuthChanged(g.onAuthChanged)
	} else {
		g.unsubscribe = func() {}
	}
	return g
}

// State returns the current user and whether a check is still pending
func (g *AuthGate) State() AuthState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return AuthState{User: g.user, Checking: g.checking}
}

// Check asks the backend who the session belongs to. A 404 on the prefixed
// route falls back to the unprefixed alias; every other failure, including
// 401, resolves to no user without retrying.
func (g *AuthGate) Check(ctx context.Context) (*models.SessionUser, error) {
	g.mu.Lock()
	g.checking = true
	g.mu.Unlock()

	user, err := g.fetch(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrUnauthorized) {
			g.log.WithError(err).Warn("session check failed")
		}
		g.resolve(nil)
		g.publish(nil)
		return nil, err
	}

	g.resolve(user)
	g.publish(user)
	return user, nil
}

func (g *AuthGate) fetch(ctx context.Context) (*models.SessionUser, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var raw json.RawMessage
	_, err := g.api.Do(ctx, backend.Request{
		Method: http.MethodGet,
		Paths:  g.paths,
		Header: g.creds.Header(),
		ShouldFallback: func(status int) bool {
			return status == http.StatusNotFound
		},
	}, &raw)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil, models.ErrUnauthorized
	}
	var user models.SessionUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}
	if user.ID == 0 && user.Email == "" {
		return nil, models.ErrUnauthorized
	}
	user.Raw = raw
	return &user, nil
}

// Expire forgets the resolved user after the backend rejected the session
// on another call.
func (g *AuthGate) Expire() {
	g.resolve(nil)
	g.publish(nil)
}

// resolve is the only place the session cache is written
func (g *AuthGate) resolve(user *models.SessionUser) {
	if user == nil {
		if err := g.cache.Clear(); err != nil {
			g.log.WithError(err).Warn("failed to clear session cache")
		}
	} else {
		if err := g.cache.StoreUser(user); err != nil {
			g.log.WithError(err).Warn("failed to cache session user")
		}
		if token := bearerToken(g.creds.Header()); token != "" {
			g.cache.SetToken(token)
		}
	}

	g.mu.Lock()
	g.user = user
	g.checking = false
	g.mu.Unlock()
}

func (g *AuthGate) publish(user *models.SessionUser) {
	if g.bus == nil {
		return
	}
	g.bus.PublishAuthChanged(events.AuthChanged{SessionID: g.sessionID, User: user, Resolved: true})
}

func bearerToken(header http.Header) string {
	auth := header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// onAuthChanged adopts users resolved elsewhere (for example the login
// modal) and re-checks the session when told it changed without a user.
func (g *AuthGate) onAuthChanged(ev events.AuthChanged) {
	if ev.SessionID != g.sessionID {
		return
	}
	if ev.Resolved {
		g.resolve(ev.User)
		return
	}
	if _, err := g.Check(context.Background()); err != nil && !errors.Is(err, models.ErrUnauthorized) {
		g.log.WithError(err).Debug("re-check after auth change failed")
	}
}

// Close detaches the gate from the event bus
func (g *AuthGate) Close() {
	g.unsubscribe()
}
