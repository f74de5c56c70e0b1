package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"sg-checkout/internal/models"
	"sg-checkout/internal/services"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	UserContextKey      contextKey = "user"
	CheckoutSessionKey  contextKey = "checkout_session"
	SessionName                    = "session"
	SessionUserIDKey               = "user_id"
	SessionCheckoutIDKey           = "sg_session_id"
)

// AuthMiddleware provides authentication functionality
type AuthMiddleware struct {
	users services.UserServiceInterface
	store sessions.Store
	log   *logrus.Entry
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(users services.UserServiceInterface, store sessions.Store, log *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		users: users,
		store: store,
		log:   log.WithField("subsystem", "auth"),
	}
}

// LoadUser middleware loads the current user from session and adds to context
func (m *AuthMiddleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, SessionName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		userID := sessionUserID(session)
		if userID == 0 {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetSessionUser(userID)
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				// user is gone or deactivated
				delete(session.Values, SessionUserIDKey)
				if err := session.Save(r, w); err != nil {
					m.log.WithError(err).Warn("failed to clear stale session user")
				}
			} else {
				m.log.WithError(err).WithField("user_id", userID).Error("failed to load session user")
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserContext(r.Context(), user)))
	})
}

// SignIn stores the user id in the cookie session
func (m *AuthMiddleware) SignIn(w http.ResponseWriter, r *http.Request, userID int) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	session.Values[SessionUserIDKey] = userID
	return session.Save(r, w)
}

// SignOut removes the user from the cookie session. The checkout session id
// is kept so the browser's controller survives.
func (m *AuthMiddleware) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}
	delete(session.Values, SessionUserIDKey)
	return session.Save(r, w)
}

// RequireAuth middleware ensures user is authenticated
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		switch {
		case IsAPIRequest(r):
			WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		case IsHTMXRequest(r):
			w.Header().Set("HX-Redirect", "/login?redirect="+r.URL.Path)
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.Redirect(w, r, "/login?redirect="+r.URL.Path, http.StatusSeeOther)
		}
	})
}

// sessionUserID reads user_id, which may come back as int, int64, float64 or
// string depending on the codec that stored it
func sessionUserID(session *sessions.Session) int {
	switch v := session.Values[SessionUserIDKey].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return id
	}
	return 0
}

// GetUserFromContext retrieves the user from request context
func GetUserFromContext(ctx context.Context) *models.SessionUser {
	user, ok := ctx.Value(UserContextKey).(*models.SessionUser)
	if !ok {
		return nil
	}
	return user
}

// SetUserContext sets the user in the context
func SetUserContext(ctx context.Context, user *models.SessionUser) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// IsHTMXRequest checks if the request is from HTMX
func IsHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// IsAPIRequest reports whether the request targets the JSON API
func IsAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") && !IsHTMXRequest(r)
}
