package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/checkout"
	"sg-checkout/internal/events"
	"sg-checkout/internal/middleware"
	"sg-checkout/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testSessionID = "sess-1"
	paidQuery     = "amount=29.99&currency=USD&eventId=7&title=Gala&ticketId=3&ticketName=VIP"
	freeQuery     = "amount=0&eventId=7&title=Gala&ticketId=3&ticketName=GA"
)

// stubAPI answers the session, intent and free-ticket endpoints
type stubAPI struct {
	mu      sync.Mutex
	user    *models.SessionUser
	intents int
	claims  int

	// intentStatus, when set, fails the next intentFailures intent requests
	intentStatus   int
	intentFailures int
}

func (s *stubAPI) failIntents(status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intentStatus = status
	s.intentFailures = times
}

func (s *stubAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/me":
		if s.user == nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Not signed in","code":"unauthorized"}`))
			return
		}
		json.NewEncoder(w).Encode(s.user)
	case "/api/payment/create-intent":
		s.intents++
		if s.intentFailures > 0 {
			s.intentFailures--
			w.WriteHeader(s.intentStatus)
			w.Write([]byte(`{"error":"intent failed"}`))
			return
		}
		json.NewEncoder(w).Encode(models.IntentResponse{ClientSecret: fmt.Sprintf("pi_%d_secret_test", s.intents)})
	case "/api/tickets/free":
		s.claims++
		json.NewEncoder(w).Encode(models.FreeTicketResponse{Success: true, Message: "Enjoy the show!"})
	default:
		http.NotFound(w, r)
	}
}

func (s *stubAPI) intentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intents
}

func (s *stubAPI) claimCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(ctx context.Context, req checkout.ConfirmRequest) (*models.ConfirmResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmResult), args.Error(1)
}

type checkoutEnv struct {
	api       *stubAPI
	registry  *checkout.Registry
	confirmer *mockConfirmer
	router    http.Handler

	// current is the checkout id of the page opened last
	current string
}

func newCheckoutEnv(t *testing.T, user *models.SessionUser) *checkoutEnv {
	t.Helper()
	api := &stubAPI{user: user}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	log := testLogger()
	cfg := checkout.DefaultConfig()
	cfg.Endpoints = checkout.Endpoints{
		Me:           []string{"/api/me"},
		CreateIntent: []string{"/api/payment/create-intent"},
		FreeTicket:   []string{"/api/tickets/free"},
	}
	cfg.Form.GraceDelay = time.Hour
	cfg.Form.SlowLoadWarning = time.Hour
	cfg.CashAppTag = "sgtickets"

	confirmer := new(mockConfirmer)
	registry := checkout.NewRegistry(cfg, checkout.Deps{
		API:       backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, log),
		Confirmer: confirmer,
		Bus:       events.NewBus(),
		Log:       log,
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go registry.Run(ctx, time.Hour)

	h := NewCheckoutHandler(registry, "pk_test_123", "sgtickets", log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.SetCheckoutSessionID(r.Context(), testSessionID)))
		})
	})
	r.Get("/checkout", h.Page)
	r.Get("/checkout/branch", h.Branch)
	r.Get("/checkout/payment", h.Payment)
	r.Post("/checkout/intent/retry", h.RetryIntent)
	r.Get("/checkout/form/state", h.FormState)
	r.Post("/checkout/form/sdk-loaded", h.SDKLoaded)
	r.Post("/checkout/form/element-ready", h.ElementReady)
	r.Post("/checkout/form/element-change", h.ElementChange)
	r.Post("/checkout/confirm", h.Confirm)
	r.Post("/checkout/claim", h.ClaimFree)
	r.Post("/checkout/auth/{tab}", h.AuthRedirect)
	r.Get("/checkout/cashapp/qr", h.CashAppQR)
	r.Get("/payment-success", h.PaymentSuccess)

	return &checkoutEnv{api: api, registry: registry, confirmer: confirmer, router: r}
}

var checkoutIDPattern = regexp.MustCompile(`hx-vals='\{"checkout":"([^"]+)"\}'`)

func (e *checkoutEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	req := httptest.NewRequest(http.MethodGet, target+sep+"checkout="+url.QueryEscape(e.current), nil)
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *checkoutEnv) page(t *testing.T, query string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/checkout?"+query, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	m := checkoutIDPattern.FindStringSubmatch(rr.Body.String())
	require.Len(t, m, 2, "page should render its checkout id")
	e.current = m[1]
	return rr
}

func (e *checkoutEnv) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("checkout") == "" {
		form.Set("checkout", e.current)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *checkoutEnv) liveSecret(t *testing.T) string {
	t.Helper()
	ctrl, ok := e.registry.Lookup(testSessionID, e.current)
	require.True(t, ok)
	form := ctrl.Form()
	require.NotNil(t, form)
	return form.ClientSecret()
}

// toasts decodes the showToast payload from HX-Trigger
func toasts(t *testing.T, rr *httptest.ResponseRecorder) []models.Toast {
	t.Helper()
	raw := rr.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var payload struct {
		ShowToast struct {
			Toasts []models.Toast `json:"toasts"`
		} `json:"showToast"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload.ShowToast.Toasts
}

func adaUser() *models.SessionUser {
	return &models.SessionUser{ID: 1, Email: "ada@example.com", Name: "Ada"}
}

func TestCheckoutPage_Branches(t *testing.T) {
	tests := []struct {
		name        string
		user        *models.SessionUser
		query       string
		contains    []string
		notContains []string
		wantIntents int
	}{
		{
			name:        "paid with user",
			user:        adaUser(),
			query:       paidQuery,
			contains:    []string{`id="payment-section"`, `data-client-secret="pi_1_secret_test"`, `data-publishable-key="pk_test_123"`, "Loading payment form...", "data:image/png;base64,"},
			wantIntents: 1,
		},
		{
			name:        "paid without user",
			query:       paidQuery,
			contains:    []string{`hx-post="/checkout/auth/signin"`, `hx-post="/checkout/auth/register"`},
			notContains: []string{`id="payment-section"`},
		},
		{
			name:        "free with user",
			user:        adaUser(),
			query:       freeQuery,
			contains:    []string{`id="claim-section"`, "Claim Free Ticket"},
			notContains: []string{`id="payment-section"`},
		},
		{
			name:        "free without user",
			query:       freeQuery,
			contains:    []string{`id="claim-section"`},
			notContains: []string{"Claim Free Ticket", `id="payment-section"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCheckoutEnv(t, tt.user)
			rr := env.page(t, tt.query)

			body := rr.Body.String()
			assert.Contains(t, body, "Gala")
			for _, s := range tt.contains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, body, s)
			}
			assert.Equal(t, tt.wantIntents, env.api.intentCount())
		})
	}
}

func TestCheckoutPage_ReloadKeepsIntent(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())

	env.page(t, paidQuery)
	env.page(t, paidQuery)
	assert.Equal(t, 1, env.api.intentCount())

	// new amount means new intent
	rr := env.page(t, "amount=45&currency=USD&eventId=7")
	assert.Equal(t, 2, env.api.intentCount())
	assert.Contains(t, rr.Body.String(), `data-client-secret="pi_2_secret_test"`)
	assert.Equal(t, 2, env.registry.Len())
}

func TestCheckoutPage_ReloadRequestsFailedIntentAgain(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())
	env.api.failIntents(http.StatusInternalServerError, 1)

	rr := env.page(t, paidQuery)
	assert.Contains(t, rr.Body.String(), "Try Again")
	assert.Equal(t, 1, env.api.intentCount())

	rr = env.page(t, paidQuery)
	assert.Equal(t, 2, env.api.intentCount())
	assert.Contains(t, rr.Body.String(), `data-client-secret="pi_2_secret_test"`)
	assert.NotContains(t, rr.Body.String(), "Try Again")
}

func TestCheckoutPage_RejectedSessionFallsBackToSignIn(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())
	env.api.failIntents(http.StatusUnauthorized, 1)

	rr := env.page(t, paidQuery)

	body := rr.Body.String()
	assert.Contains(t, body, `hx-post="/checkout/auth/signin"`)
	assert.Contains(t, body, "Session expired")
	assert.NotContains(t, body, `id="payment-section"`)
	assert.NotContains(t, body, "Try Again")
	assert.Equal(t, 1, env.api.intentCount())

	// the polled payment fragment swaps in the sign-in branch
	rr = env.get(t, "/checkout/payment")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "#checkout-branch", rr.Header().Get("HX-Retarget"))
	assert.Contains(t, rr.Body.String(), `hx-post="/checkout/auth/signin"`)
	assert.Equal(t, 1, env.api.intentCount())
}

func TestCheckoutHandler_TabsKeepTheirOwnCheckout(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())

	env.page(t, "amount=10&currency=USD&eventId=1&title=Gala")
	tabA := env.current
	secretA := env.liveSecret(t)

	rr := env.page(t, "amount=250&currency=USD&eventId=2&title=Ball")
	tabB := env.current
	require.NotEqual(t, tabA, tabB)
	assert.Contains(t, rr.Body.String(), `data-client-secret="pi_2_secret_test"`)

	// tab A still drives its own form and intent
	env.current = tabA
	assert.Equal(t, secretA, env.liveSecret(t))
	rr = env.post(t, "/checkout/form/sdk-loaded", url.Values{"client_secret": {secretA}})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = env.post(t, "/checkout/form/element-change", url.Values{"client_secret": {secretA}, "complete": {"true"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Pay $10.00")

	env.confirmer.On("Confirm", mock.Anything, mock.MatchedBy(func(req checkout.ConfirmRequest) bool {
		return req.ClientSecret == secretA
	})).Return(&models.ConfirmResult{Status: models.ConfirmSucceeded}, nil).Once()

	rr = env.post(t, "/checkout/confirm", url.Values{"client_secret": {secretA}, "payment_method": {"pm_card_visa"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/payment-success?eventId=1&eventTitle=Gala", rr.Header().Get("HX-Redirect"))
	env.confirmer.AssertExpectations(t)

	// tab B is untouched
	_, ok := env.registry.Lookup(testSessionID, tabA)
	assert.False(t, ok)
	env.current = tabB
	assert.Equal(t, "pi_2_secret_test", env.liveSecret(t))
	assert.Equal(t, 2, env.api.intentCount())
}

func TestCheckoutHandler_MissingCheckoutID(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())
	env.page(t, paidQuery)
	secret := env.liveSecret(t)

	rr := env.post(t, "/checkout/form/sdk-loaded", url.Values{"client_secret": {secret}, "checkout": {"unknown-page"}})

	assert.Equal(t, http.StatusGone, rr.Code)
	assert.Equal(t, "true", rr.Header().Get("HX-Refresh"))
}

func TestCheckoutHandler_ExpiredSession(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())

	rr := env.post(t, "/checkout/form/sdk-loaded", url.Values{"client_secret": {"pi_1_secret_test"}})

	assert.Equal(t, http.StatusGone, rr.Code)
	assert.Equal(t, "true", rr.Header().Get("HX-Refresh"))
}

func TestCheckoutHandler_FormEvents(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())
	env.page(t, paidQuery)
	secret := env.liveSecret(t)

	rr := env.post(t, "/checkout/form/sdk-loaded", url.Values{"client_secret": {secret}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Loading payment form...")

	rr = env.post(t, "/checkout/form/element-change", url.Values{"client_secret": {secret}, "complete": {"true"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Pay $29.99")
	assert.NotContains(t, rr.Body.String(), `" disabled>`)

	rr = env.get(t, "/checkout/form/state?client_secret="+url.QueryEscape(secret))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `id="submit-area"`)
}

func TestCheckoutHandler_StaleSecret(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())
	env.page(t, paidQuery)

	for _, target := range []string{"/checkout/form/element-change", "/checkout/form/element-ready", "/checkout/confirm"} {
		t.Run(target, func(t *testing.T) {
			rr := env.post(t, target, url.Values{"client_secret": {"pi_old_secret_x"}, "payment_method": {"pm_card_visa"}})

			assert.Equal(t, http.StatusConflict, rr.Code)
			assert.Equal(t, "#payment-section", rr.Header().Get("HX-Retarget"))
			assert.Equal(t, "outerHTML", rr.Header().Get("HX-Reswap"))
			assert.Contains(t, rr.Body.String(), `data-client-secret="pi_1_secret_test"`)
			assert.Contains(t, rr.Body.String(), `data-checkout-id="`+env.current+`"`)
			// the re-rendered card script reuses the handlers bound on first render
			assert.Contains(t, rr.Body.String(), "if (!sg.bound)")

			got := toasts(t, rr)
			require.Len(t, got, 1)
			assert.Equal(t, "Payment form refreshed", got[0].Title)
		})
	}

	t.Run("missing secret", func(t *testing.T) {
		rr := env.post(t, "/checkout/confirm", url.Values{"payment_method": {"pm_card_visa"}})

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "#payment-section", rr.Header().Get("HX-Retarget"))
	})

	rr := env.get(t, "/checkout/form/state?client_secret=pi_old_secret_x")
	assert.Equal(t, http.StatusConflict, rr.Code)
	env.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestCheckoutHandler_Confirm(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		env := newCheckoutEnv(t, adaUser())
		env.page(t, paidQuery)

		rr := env.post(t, "/checkout/confirm", url.Values{"client_secret": {env.liveSecret(t)}, "payment_method": {"pm_card_visa"}})

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, rr.Body.String(), `id="submit-area"`)
		env.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("succeeded", func(t *testing.T) {
		env := newCheckoutEnv(t, adaUser())
		env.page(t, paidQuery)
		secret := env.liveSecret(t)
		env.post(t, "/checkout/form/sdk-loaded", url.Values{"client_secret": {secret}})
		env.post(t, "/checkout/form/element-change", url.Values{"client_secret": {secret}, "complete": {"true"}})

		env.confirmer.On("Confirm", mock.Anything, mock.MatchedBy(func(req checkout.ConfirmRequest) bool {
			return req.ClientSecret == secret && req.PaymentMethod == "pm_card_visa"
		})).Return(&models.ConfirmResult{Status: models.ConfirmSucceeded}, nil).Once()

		rr := env.post(t, "/checkout/confirm", url.Values{"client_secret": {secret}, "payment_method": {"pm_card_visa"}})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "/payment-success?eventId=7&eventTitle=Gala&ticketId=3&ticketName=VIP", rr.Header().Get("HX-Redirect"))
		assert.Equal(t, 0, env.registry.Len())
		env.confirmer.AssertExpectations(t)
	})

	t.Run("declined", func(t *testing.T) {
		env := newCheckoutEnv(t, adaUser())
		env.page(t, paidQuery)
		secret := env.liveSecret(t)
		env.post(t, "/checkout/form/sdk-loaded", url.Values{"client_secret": {secret}})
		env.post(t, "/checkout/form/element-ready", url.Values{"client_secret": {secret}})

		env.confirmer.On("Confirm", mock.Anything, mock.Anything).
			Return(&models.ConfirmResult{Status: models.ConfirmFailed, Message: "Your card was declined."}, nil).Once()

		rr := env.post(t, "/checkout/confirm", url.Values{"client_secret": {secret}, "payment_method": {"pm_card_visa"}})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Pay $29.99")
		got := toasts(t, rr)
		require.Len(t, got, 1)
		assert.Equal(t, "Your card was declined.", got[0].Description)
		assert.Equal(t, "destructive", got[0].Variant)
		assert.Equal(t, 1, env.registry.Len())
	})

	t.Run("requires action", func(t *testing.T) {
		env := newCheckoutEnv(t, adaUser())
		env.page(t, paidQuery)
		secret := env.liveSecret(t)
		env.post(t, "/checkout/form/sdk-loaded", url.Values{"client_secret": {secret}})
		env.post(t, "/checkout/form/element-ready", url.Values{"client_secret": {secret}})

		env.confirmer.On("Confirm", mock.Anything, mock.Anything).
			Return(&models.ConfirmResult{Status: models.ConfirmRequiresAction, RedirectURL: "https://hooks.stripe.com/3ds"}, nil).Once()

		rr := env.post(t, "/checkout/confirm", url.Values{"client_secret": {secret}, "payment_method": {"pm_card_visa"}})

		assert.Equal(t, "https://hooks.stripe.com/3ds", rr.Header().Get("HX-Redirect"))
	})
}

func TestCheckoutHandler_ClaimFree(t *testing.T) {
	t.Run("claimed", func(t *testing.T) {
		env := newCheckoutEnv(t, adaUser())
		env.page(t, freeQuery)

		rr := env.post(t, "/checkout/claim", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, "Enjoy the show!")
		assert.Contains(t, body, `hx-trigger="load delay:1500ms"`)
		assert.Contains(t, body, "/payment-success?eventId=7")
		assert.Equal(t, 1, env.api.claimCount())

		got := toasts(t, rr)
		require.Len(t, got, 1)
		assert.Equal(t, "Ticket claimed", got[0].Title)
	})

	t.Run("missing ticket id", func(t *testing.T) {
		env := newCheckoutEnv(t, adaUser())
		env.page(t, "amount=0&eventId=7")

		rr := env.post(t, "/checkout/claim", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `id="claim-section"`)
		assert.Equal(t, 0, env.api.claimCount())
		got := toasts(t, rr)
		require.Len(t, got, 1)
		assert.Equal(t, "Invalid Ticket", got[0].Title)
	})

	t.Run("paid checkout", func(t *testing.T) {
		env := newCheckoutEnv(t, adaUser())
		env.page(t, paidQuery)

		rr := env.post(t, "/checkout/claim", nil)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "true", rr.Header().Get("HX-Refresh"))
		assert.Equal(t, 0, env.api.claimCount())
	})
}

func TestCheckoutHandler_AuthRedirect(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	env.page(t, paidQuery)

	rr := env.post(t, "/checkout/auth/register", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	target, err := url.Parse(rr.Header().Get("HX-Redirect"))
	require.NoError(t, err)
	assert.Equal(t, "/login", target.Path)
	assert.Equal(t, "register", target.Query().Get("tab"))

	redirect, err := url.Parse(target.Query().Get("redirect"))
	require.NoError(t, err)
	assert.Equal(t, "/checkout", redirect.Path)
	assert.Equal(t, "29.99", redirect.Query().Get("amount"))
	assert.Equal(t, "VIP", redirect.Query().Get("ticketName"))
}

func TestCheckoutHandler_CashAppQR(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())
	env.page(t, paidQuery)

	rr := env.get(t, "/checkout/cashapp/qr")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "\x89PNG"))
}

func TestCheckoutHandler_RetryIntent(t *testing.T) {
	env := newCheckoutEnv(t, adaUser())
	env.page(t, paidQuery)

	rr := env.post(t, "/checkout/intent/retry", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, env.api.intentCount())
	assert.Contains(t, rr.Body.String(), `data-client-secret="pi_2_secret_test"`)
	assert.Equal(t, "pi_2_secret_test", env.liveSecret(t))
}

func TestCheckoutHandler_PaymentSuccess(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		contains    string
		wantRemoved bool
	}{
		{name: "card payment", query: "eventTitle=Gala&ticketName=VIP", contains: "VIP for Gala", wantRemoved: true},
		{name: "processing", query: "eventTitle=Gala&redirect_status=processing", contains: "still processing", wantRemoved: true},
		{name: "failed redirect", query: "eventTitle=Gala&redirect_status=failed", contains: "Payment not completed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCheckoutEnv(t, adaUser())
			env.page(t, paidQuery)

			rr := env.get(t, "/payment-success?"+tt.query)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.contains)
			_, ok := env.registry.Lookup(testSessionID, env.current)
			assert.Equal(t, !tt.wantRemoved, ok)
		})
	}
}
