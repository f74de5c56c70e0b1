package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

// SessionMiddleware provides session management functionality
type SessionMiddleware struct {
	store sessions.Store
	log   *logrus.Entry
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(store sessions.Store, log *logrus.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		store: store,
		log:   log.WithField("subsystem", "session"),
	}
}

// NewCookieStore builds the cookie store shared by the session middlewares
func NewCookieStore(secret string, maxAge int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// CheckoutSession makes sure every browser carries a checkout session id and
// exposes it on the request context
func (m *SessionMiddleware) CheckoutSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, SessionName)
		if err != nil {
			// undecodable cookie (rotated secret); start over with a fresh one
			m.log.WithError(err).Debug("discarding invalid session cookie")
		}
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}

		id, _ := session.Values[SessionCheckoutIDKey].(string)
		if id == "" {
			id = uuid.NewString()
			session.Values[SessionCheckoutIDKey] = id
			if err := session.Save(r, w); err != nil {
				m.log.WithError(err).Warn("failed to save checkout session id")
			}
		}

		next.ServeHTTP(w, r.WithContext(SetCheckoutSessionID(r.Context(), id)))
	})
}

// GetCheckoutSessionID returns the checkout session id placed on the context
func GetCheckoutSessionID(ctx context.Context) string {
	id, _ := ctx.Value(CheckoutSessionKey).(string)
	return id
}

// SetCheckoutSessionID puts a checkout session id on the context
func SetCheckoutSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CheckoutSessionKey, id)
}

// SecureHeaders adds security headers to responses
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// the card element and PayPal buttons render in provider iframes
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com https://js.stripe.com https://www.paypal.com; "+
				"frame-src https://js.stripe.com https://hooks.stripe.com https://www.paypal.com; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self' https://api.stripe.com;")

		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
