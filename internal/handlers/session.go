package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"sg-checkout/internal/middleware"
	"sg-checkout/internal/models"
	"sg-checkout/internal/services"
	"sg-checkout/web/templates/pages"
)

// SessionHandler serves the sign-in landing page. Real sign-in lives in the
// site's auth modal; outside production a seeded user can sign in by email.
type SessionHandler struct {
	users    services.UserServiceInterface
	auth     *middleware.AuthMiddleware
	devLogin bool
	log      *logrus.Entry
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(users services.UserServiceInterface, auth *middleware.AuthMiddleware, devLogin bool, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		users:    users,
		auth:     auth,
		devLogin: devLogin,
		log:      log.WithField("subsystem", "session"),
	}
}

// LoginPage renders the landing page the checkout sends signed-out users to
func (h *SessionHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := pages.LoginPageData{
		Tab:      q.Get("tab"),
		Redirect: safeRedirect(q.Get("redirect")),
		DevLogin: h.devLogin,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.LoginPage(data).Render(r.Context(), w); err != nil {
		h.log.WithError(err).Error("failed to render login page")
	}
}

// DevLogin signs a seeded user in by email
func (h *SessionHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.devLogin {
		http.NotFound(w, r)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	redirect := safeRedirect(r.FormValue("redirect"))

	user, err := h.users.FindByEmail(email)
	if err != nil {
		if !errors.Is(err, models.ErrUserNotFound) {
			h.log.WithError(err).Error("dev login lookup failed")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		pages.LoginPage(pages.LoginPageData{Redirect: redirect, DevLogin: true, Error: "No active user with that email."}).Render(r.Context(), w)
		return
	}

	if err := h.auth.SignIn(w, r, user.ID); err != nil {
		h.log.WithError(err).Error("failed to save session")
		http.Error(w, "Could not sign in", http.StatusInternalServerError)
		return
	}
	h.log.WithField("user_id", user.ID).Info("development sign-in")
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// Logout clears the signed-in user
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(w, r); err != nil {
		h.log.WithError(err).Warn("failed to clear session")
	}
	redirect := safeRedirect(r.FormValue("redirect"))
	if middleware.IsHTMXRequest(r) {
		w.Header().Set("HX-Redirect", redirect)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// safeRedirect only allows local paths
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/checkout"
	}
	return target
}
