package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/events"
	"sg-checkout/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeBackend serves the session, intent and free-ticket endpoints and counts
// calls per path.
type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	bodies   map[string][]byte
	headers  map[string]http.Header
	status   map[string]int
	user     *models.SessionUser
	secrets  int
	freeResp models.FreeTicketResponse

	// gate, when set, blocks intent requests until it is closed
	gate     chan struct{}
	received chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:    make(map[string]int),
		bodies:   make(map[string][]byte),
		headers:  make(map[string]http.Header),
		status:   make(map[string]int),
		user:     &models.SessionUser{ID: 1, Email: "ada@example.com", Name: "Ada"},
		freeResp: models.FreeTicketResponse{Success: true, Message: "Enjoy the show!"},
	}
}

func (f *fakeBackend) setStatus(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[path] = status
}

func (f *fakeBackend) setUser(user *models.SessionUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = user
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) intentCalls() int {
	return f.count("/api/payment/create-intent") + f.count("/payment/create-intent")
}

func (f *fakeBackend) freeCalls() int {
	return f.count("/api/tickets/free") + f.count("/tickets/free")
}

func (f *fakeBackend) body(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeBackend) header(path string) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers[path]
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.bodies[r.URL.Path] = body
	f.headers[r.URL.Path] = r.Header.Clone()
	status := f.status[r.URL.Path]
	user := f.user
	gate := f.gate
	received := f.received
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
		return
	}

	switch r.URL.Path {
	case "/api/me", "/me":
		if user == nil {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not signed in"})
			return
		}
		_ = json.NewEncoder(w).Encode(user)
	case "/api/payment/create-intent", "/payment/create-intent":
		if received != nil {
			received <- struct{}{}
		}
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		f.secrets++
		n := f.secrets
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(models.IntentResponse{ClientSecret: fmt.Sprintf("pi_%d_secret_test", n)})
	case "/api/tickets/free", "/tickets/free":
		f.mu.Lock()
		resp := f.freeResp
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(resp)
	default:
		http.NotFound(w, r)
	}
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(ctx context.Context, req ConfirmRequest) (*models.ConfirmResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmResult), args.Error(1)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Form.GraceDelay = 20 * time.Millisecond
	cfg.Form.SlowLoadWarning = time.Hour
	cfg.FreeTicketNavigateDelay = 1500 * time.Millisecond
	cfg.CashAppTag = "sgtickets"
	cfg.PayPalClientID = "paypal-client"
	return cfg
}

type testEnv struct {
	backend   *fakeBackend
	server    *httptest.Server
	api       *backend.Client
	bus       *events.Bus
	confirmer *mockConfirmer
	log       *logrus.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	log := quietLogger()
	return &testEnv{
		backend:   fb,
		server:    srv,
		api:       backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, log),
		bus:       events.NewBus(),
		confirmer: &mockConfirmer{},
		log:       log,
	}
}

func (e *testEnv) deps() Deps {
	return Deps{API: e.api, Confirmer: e.confirmer, Bus: e.bus, Log: e.log}
}

// controller builds a started controller navigated to query
func (e *testEnv) controller(t *testing.T, query string) *Controller {
	t.Helper()
	c := NewController("sess-1", NewCredentials(http.Header{"Cookie": []string{"session=abc"}}), testConfig(), e.deps())
	t.Cleanup(c.Close)
	c.Navigate(parseQuery(t, query))
	c.Start(context.Background())
	return c
}

func parseQuery(t *testing.T, query string) models.CheckoutContext {
	t.Helper()
	q, err := url.ParseQuery(query)
	require.NoError(t, err)
	return models.ParseCheckoutContext(q)
}

// readyForm marks the live form as loaded and complete
func readyForm(t *testing.T, c *Controller) *PaymentForm {
	t.Helper()
	form := c.Form()
	require.NotNil(t, form)
	require.NoError(t, c.SDKLoaded(form.ClientSecret()))
	require.NoError(t, c.ElementChange(form.ClientSecret(), true))
	require.Equal(t, FormReady, form.State())
	return form
}
