package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"sg-checkout/internal/events"
	"sg-checkout/internal/models"
)

// Config configures a checkout controller
type Config struct {
	Endpoints               Endpoints
	Form                    FormConfig
	FreeTicketNavigateDelay time.Duration
	CheckoutPath            string
	LoginPath               string
	CashAppTag              string
	PayPalClientID          string
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Endpoints:               DefaultEndpoints(),
		Form:                    DefaultFormConfig(),
		FreeTicketNavigateDelay: 1500 * time.Millisecond,
		CheckoutPath:            "/checkout",
		LoginPath:               "/login",
	}
}

// Deps are the collaborators shared by all controllers
type Deps struct {
	API       API
	Confirmer Confirmer
	Bus       *events.Bus
	Log       *logrus.Logger
}

// SelectBranch picks what the checkout page shows. It has no side effects.
func SelectBranch(checkingAuth bool, user *models.SessionUser, amountCents int64) models.Branch {
	switch {
	case checkingAuth:
		return models.BranchLoading
	case amountCents == 0:
		return models.BranchFreeTicket
	case user == nil:
		return models.BranchAuthRequired
	default:
		return models.BranchPaid
	}
}

// Controller drives one browser checkout session
type Controller struct {
	sessionID  string
	checkoutID string
	cfg        Config
	creds      *Credentials
	cache      *MemorySessionCache
	toasts     *ToastQueue
	gate       *AuthGate
	boot       *IntentBootstrapper
	claimer    *FreeTicketClaimer
	confirmer  Confirmer
	bus        *events.Bus
	log        *logrus.Entry

	flights singleflight.Group

	mu         sync.Mutex
	checkout   models.CheckoutContext
	requestSeq uint64
	form       *PaymentForm
	intentErr  error
	userID     int
	claiming   bool
	closed     bool

	unsubscribe func()
}

// NewController creates a controller for a checkout session. The auth check
// is not started until Start is called.
func NewController(sessionID string, creds *Credentials, cfg Config, deps Deps) *Controller {
	if creds == nil {
		creds = NewCredentials(nil)
	}
	toasts := NewToastQueue()
	cache := NewMemorySessionCache(sessionID)

	c := &Controller{
		sessionID: sessionID,
		cfg:       cfg,
		creds:     creds,
		cache:     cache,
		toasts:    toasts,
		gate:      NewAuthGate(deps.API, creds, cache, deps.Bus, sessionID, cfg.Endpoints.Me, deps.Log),
		boot:      NewIntentBootstrapper(deps.API, creds, cfg.Endpoints.CreateIntent, deps.Log),
		claimer:   NewFreeTicketClaimer(deps.API, creds, cfg.Endpoints.FreeTicket, toasts, cfg.FreeTicketNavigateDelay, cfg.Form, deps.Log),
		confirmer: deps.Confirmer,
		bus:       deps.Bus,
		log:       deps.Log.WithFields(logrus.Fields{"subsystem": "controller", "session_id": sessionID}),
	}
	if deps.Bus != nil {
		c.unsubscribe = deps.Bus.SubscribeAuthChanged(c.onAuthChanged)
	} else {
		c.unsubscribe = func() {}
	}
	return c
}

// SessionID returns the checkout session id
func (c *Controller) SessionID() string {
	return c.sessionID
}

// CheckoutID returns the id of the checkout page this controller drives
func (c *Controller) CheckoutID() string {
	return c.checkoutID
}

// Credentials returns the headers forwarded to the backend
func (c *Controller) Credentials() *Credentials {
	return c.creds
}

// UseRequest forwards the identifying headers of r to the backend. A request
// without a bearer token reuses the one the session was resolved with.
func (c *Controller) UseRequest(r *http.Request) {
	c.creds.SetFromRequest(r)
	if r.Header.Get("Authorization") != "" {
		return
	}
	if token := c.cache.Token(); token != "" {
		c.creds.SetBearer(token)
	}
}

// Toasts returns the controller's toast queue
func (c *Controller) Toasts() *ToastQueue {
	return c.toasts
}

// Start resolves the session user. Auth failures are not errors here; they
// leave the controller on the auth-required branch.
func (c *Controller) Start(ctx context.Context) {
	if _, err := c.gate.Check(ctx); err != nil && !errors.Is(err, models.ErrUnauthorized) {
		c.log.WithError(err).Debug("session check did not resolve a user")
	}
}

// Auth returns the auth gate state
func (c *Controller) Auth() AuthState {
	return c.gate.State()
}

// Checkout returns the current checkout context
func (c *Controller) Checkout() models.CheckoutContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkout
}

// Navigate installs a new checkout context. When the intent identity changes
// the live intent and any in-flight request are dropped. A failed intent is
// forgotten so the next EnsureIntent asks again.
func (c *Controller) Navigate(checkout models.CheckoutContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checkout.Key() != checkout.Key() {
		c.dropIntentLocked()
	}
	c.checkout = checkout
	c.intentErr = nil
}

// Branch returns the branch for the current state
func (c *Controller) Branch() models.Branch {
	auth := c.gate.State()
	c.mu.Lock()
	defer c.mu.Unlock()
	return SelectBranch(auth.Checking, auth.User, c.checkout.AmountCents)
}

// EnsureIntent makes sure a live intent exists for the current paid
// checkout. Concurrent callers for the same parameters share one request.
func (c *Controller) EnsureIntent(ctx context.Context) (*models.PaymentIntentHandle, error) {
	auth := c.gate.State()

	c.mu.Lock()
	checkout := c.checkout
	if SelectBranch(auth.Checking, auth.User, checkout.AmountCents) != models.BranchPaid {
		c.mu.Unlock()
		return nil, models.ErrWrongBranch
	}
	c.syncUserLocked(auth.User)
	if c.form != nil && c.form.Handle().Key == checkout.Key() {
		handle := c.form.Handle()
		c.mu.Unlock()
		return &handle, nil
	}
	if c.intentErr != nil {
		err := c.intentErr
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	v, err, _ := c.flights.Do(checkout.Key().String(), func() (interface{}, error) {
		c.mu.Lock()
		if c.form != nil && c.form.Handle().Key == checkout.Key() {
			handle := c.form.Handle()
			c.mu.Unlock()
			return &handle, nil
		}
		c.mu.Unlock()
		return c.requestIntent(ctx, checkout)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.PaymentIntentHandle), nil
}

// RetryIntent discards the live intent and requests a fresh one
func (c *Controller) RetryIntent(ctx context.Context) (*models.PaymentIntentHandle, error) {
	auth := c.gate.State()

	c.mu.Lock()
	checkout := c.checkout
	if SelectBranch(auth.Checking, auth.User, checkout.AmountCents) != models.BranchPaid {
		c.mu.Unlock()
		return nil, models.ErrWrongBranch
	}
	c.syncUserLocked(auth.User)
	c.dropIntentLocked()
	c.mu.Unlock()

	return c.requestIntent(ctx, checkout)
}

func (c *Controller) requestIntent(ctx context.Context, checkout models.CheckoutContext) (*models.PaymentIntentHandle, error) {
	c.mu.Lock()
	c.requestSeq++
	id := c.requestSeq
	c.mu.Unlock()

	secret, err := c.boot.Create(ctx, checkout, NewIdempotencyKey())

	c.mu.Lock()
	if c.closed || id != c.requestSeq || c.checkout.Key() != checkout.Key() {
		c.mu.Unlock()
		c.log.WithField("request_id", id).Debug("discarding stale intent response")
		return nil, models.ErrStaleIntent
	}

	if errors.Is(err, models.ErrUnauthorized) {
		// the page falls back to the sign-in branch
		c.toasts.Notify(errorToast("Session expired", "Please sign in again to continue."))
		c.mu.Unlock()
		c.log.Info("backend rejected the session while creating an intent")
		c.gate.Expire()
		return nil, err
	}
	defer c.mu.Unlock()

	if err != nil {
		c.intentErr = err
		c.log.WithError(err).Warn("payment intent creation failed")
		c.toasts.Notify(errorToast("Payment setup failed", "We couldn't start the payment. Please try again."))
		return nil, err
	}

	handle := models.PaymentIntentHandle{ClientSecret: secret, RequestID: id, Key: checkout.Key()}
	if c.form != nil {
		c.form.Close()
	}
	c.form = NewPaymentForm(handle, checkout, c.confirmer, c.toasts, c.cfg.Form, c.log.WithField("subsystem", "card_form"))
	c.intentErr = nil
	return &handle, nil
}

// dropIntentLocked tears down the live form and invalidates any in-flight
// request. c.mu must be held.
func (c *Controller) dropIntentLocked() {
	c.requestSeq++
	if c.form != nil {
		c.form.Close()
		c.form = nil
	}
	c.intentErr = nil
}

// Form returns the live card form, if any
func (c *Controller) Form() *PaymentForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// liveForm returns the form bound to clientSecret or ErrStaleIntent. An
// empty secret never matches.
func (c *Controller) liveForm(clientSecret string) (*PaymentForm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form == nil {
		return nil, models.ErrNoIntent
	}
	if clientSecret == "" || clientSecret != c.form.ClientSecret() {
		return nil, models.ErrStaleIntent
	}
	return c.form, nil
}

// SDKLoaded forwards the SDK-loaded signal to the form for clientSecret
func (c *Controller) SDKLoaded(clientSecret string) error {
	form, err := c.liveForm(clientSecret)
	if err != nil {
		return err
	}
	form.SDKLoaded()
	return nil
}

// ElementReady forwards the element ready callback
func (c *Controller) ElementReady(clientSecret string) error {
	form, err := c.liveForm(clientSecret)
	if err != nil {
		return err
	}
	form.ElementReady()
	return nil
}

// ElementChange forwards an element change event
func (c *Controller) ElementChange(clientSecret string, complete bool) error {
	form, err := c.liveForm(clientSecret)
	if err != nil {
		return err
	}
	form.ElementChange(complete)
	return nil
}

// Confirm submits the card payment. The secret the page was rendered with
// must still be the live one.
func (c *Controller) Confirm(ctx context.Context, clientSecret, paymentMethod string) (*SubmitOutcome, error) {
	auth := c.gate.State()
	if !auth.Authenticated() {
		return nil, models.ErrUnauthorized
	}
	form, err := c.liveForm(clientSecret)
	if err != nil {
		return nil, err
	}
	return form.Submit(ctx, paymentMethod)
}

// ClaimFree claims the free ticket of the current checkout
func (c *Controller) ClaimFree(ctx context.Context) (*ClaimOutcome, error) {
	auth := c.gate.State()

	c.mu.Lock()
	checkout := c.checkout
	if auth.Checking || !checkout.IsFree() {
		c.mu.Unlock()
		return nil, models.ErrWrongBranch
	}
	if c.claiming {
		c.mu.Unlock()
		return nil, models.ErrFormSubmitting
	}
	c.claiming = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.claiming = false
		c.mu.Unlock()
	}()

	return c.claimer.Claim(ctx, auth.User, checkout)
}

// CheckoutURL returns the checkout path with every known parameter
func (c *Controller) CheckoutURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return checkoutURL(c.cfg.CheckoutPath, c.checkout)
}

func checkoutURL(path string, checkout models.CheckoutContext) string {
	if path == "" {
		path = "/checkout"
	}
	return path + "?" + checkout.Query().Encode()
}

// AuthRedirect asks the auth modal to open on tab and returns the login URL
// that brings the user back to an equivalent checkout.
func (c *Controller) AuthRedirect(tab string) string {
	if tab != events.TabRegister {
		tab = events.TabSignIn
	}
	redirectPath := c.CheckoutURL()

	if c.bus != nil {
		c.bus.PublishOpenAuthModal(events.OpenAuthModal{SessionID: c.sessionID, Tab: tab, RedirectPath: redirectPath})
	}

	login := c.cfg.LoginPath
	if login == "" {
		login = "/login"
	}
	q := url.Values{}
	q.Set("tab", tab)
	q.Set("redirect", redirectPath)
	return login + "?" + q.Encode()
}

func (c *Controller) onAuthChanged(ev events.AuthChanged) {
	if ev.SessionID != c.sessionID || !ev.Resolved {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncUserLocked(ev.User)
}

// syncUserLocked drops the live intent when the session user changes, since
// intents belong to the user they were created for. c.mu must be held.
func (c *Controller) syncUserLocked(user *models.SessionUser) {
	id := 0
	if user != nil {
		id = user.ID
	}
	if id != c.userID {
		if c.userID != 0 {
			c.dropIntentLocked()
		}
		c.userID = id
	}
}

// View is a snapshot of everything the page renders
type View struct {
	SessionID       string
	CheckoutID      string
	Branch          models.Branch
	Checkout        models.CheckoutContext
	User            *models.SessionUser
	ClientSecret    string
	FormState       FormState
	CanSubmit       bool
	SlowLoadWarning bool
	IntentError     string
	CanRetry        bool
	CashAppURL      string
	PayPal          PayPalButton
	CheckoutURL     string
}

// View returns the current render snapshot
func (c *Controller) View() View {
	auth := c.gate.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		SessionID:   c.sessionID,
		CheckoutID:  c.checkoutID,
		Branch:      SelectBranch(auth.Checking, auth.User, c.checkout.AmountCents),
		Checkout:    c.checkout,
		User:        auth.User,
		FormState:   FormNotReady,
		CheckoutURL: checkoutURL(c.cfg.CheckoutPath, c.checkout),
	}
	if v.Branch != models.BranchPaid {
		return v
	}

	if c.form != nil {
		v.ClientSecret = c.form.ClientSecret()
		v.FormState = c.form.State()
		v.CanSubmit = c.form.CanSubmit()
		v.SlowLoadWarning = c.form.SlowLoadWarning()
	}
	if c.intentErr != nil {
		v.IntentError = "We couldn't start the payment."
		v.CanRetry = true
	}
	v.CashAppURL = CashAppLink(c.cfg.CashAppTag, c.checkout)
	v.PayPal = NewPayPalButton(c.cfg.PayPalClientID, c.checkout)
	return v
}

// Close stops timers and detaches from the event bus
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.dropIntentLocked()
	c.mu.Unlock()

	c.unsubscribe()
	c.gate.Close()
}
