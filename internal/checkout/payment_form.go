package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sg-checkout/internal/models"
)

// FormState is the card form lifecycle
type FormState string

const (
	FormNotReady   FormState = "not_ready"
	FormReady      FormState = "ready"
	FormSubmitting FormState = "submitting"
	FormSucceeded  FormState = "succeeded"
	FormFailed     FormState = "failed"
)

// FormConfig holds the form timings and URLs
type FormConfig struct {
	// GraceDelay is how long after the provider SDK loads the form becomes
	// submittable even if the card element never reports complete.
	GraceDelay      time.Duration
	SlowLoadWarning time.Duration
	BaseURL         string
	SuccessPath     string
}

// DefaultFormConfig returns the production timings
func DefaultFormConfig() FormConfig {
	return FormConfig{
		GraceDelay:      time.Second,
		SlowLoadWarning: 5 * time.Second,
		SuccessPath:     "/payment-success",
	}
}

// SubmitOutcome tells the page what to do after a confirmation
type SubmitOutcome struct {
	Status ConfirmOutcome
	// NavigateURL is set when the payment completed and the success page
	// should be shown.
	NavigateURL string
	// RedirectURL is set when the provider needs the user on another page
	// (3-D Secure and similar).
	RedirectURL string
	Message     string
}

// ConfirmOutcome is the page-level classification of a confirmation
type ConfirmOutcome string

const (
	OutcomeSucceeded ConfirmOutcome = "succeeded"
	OutcomeRedirect  ConfirmOutcome = "redirect"
	OutcomeFailed    ConfirmOutcome = "failed"
)

// PaymentForm tracks one card element bound to one client secret
type PaymentForm struct {
	handle    models.PaymentIntentHandle
	checkout  models.CheckoutContext
	confirmer Confirmer
	notifier  Notifier
	cfg       FormConfig
	log       *logrus.Entry

	mu              sync.Mutex
	state           FormState
	sdkLoaded       bool
	elementComplete bool
	graceElapsed    bool
	slowWarning     bool
	closed          bool
	graceTimer      *time.Timer
	slowTimer       *time.Timer
}

// NewPaymentForm creates a form for a live intent and starts the slow-load
// timer.
func NewPaymentForm(handle models.PaymentIntentHandle, checkout models.CheckoutContext, confirmer Confirmer, notifier Notifier, cfg FormConfig, log *logrus.Entry) *PaymentForm {
	f := &PaymentForm{
		handle:    handle,
		checkout:  checkout,
		confirmer: confirmer,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.WithField("intent", handle.IntentID()),
		state:     FormNotReady,
	}
	if cfg.SlowLoadWarning > 0 {
		f.slowTimer = time.AfterFunc(cfg.SlowLoadWarning, f.onSlowLoad)
	}
	return f
}

// Handle returns the intent this form is bound to
func (f *PaymentForm) Handle() models.PaymentIntentHandle {
	return f.handle
}

// ClientSecret returns the secret the card element must be mounted with
func (f *PaymentForm) ClientSecret() string {
	return f.handle.ClientSecret
}

// State returns the current form state
func (f *PaymentForm) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SlowLoadWarning reports whether the form failed to become ready in time.
// The warning is advisory and never blocks submission.
func (f *PaymentForm) SlowLoadWarning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slowWarning && f.state == FormNotReady
}

// CanSubmit reports whether the pay button is enabled
func (f *PaymentForm) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == FormReady || f.state == FormFailed
}

// SDKLoaded records that the provider SDK handle exists and starts the grace
// timer.
func (f *PaymentForm) SDKLoaded() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.sdkLoaded {
		return
	}
	f.sdkLoaded = true
	if f.cfg.GraceDelay <= 0 {
		f.graceElapsed = true
	} else {
		f.graceTimer = time.AfterFunc(f.cfg.GraceDelay, f.onGraceElapsed)
	}
	f.updateReadyLocked()
}

// ElementReady records the element's own readiness callback. It counts as
// the grace period having elapsed.
func (f *PaymentForm) ElementReady() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.graceElapsed = true
	f.updateReadyLocked()
}

// ElementChange records a change event from the card element
func (f *PaymentForm) ElementChange(complete bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.elementComplete = complete
	f.updateReadyLocked()
}

func (f *PaymentForm) onGraceElapsed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.graceElapsed = true
	f.updateReadyLocked()
}

func (f *PaymentForm) onSlowLoad() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.state != FormNotReady {
		return
	}
	f.slowWarning = true
	f.log.Warn("payment form slow to load")
}

func (f *PaymentForm) updateReadyLocked() {
	if f.state != FormNotReady {
		return
	}
	if f.sdkLoaded && (f.elementComplete || f.graceElapsed) {
		f.state = FormReady
		f.slowWarning = false
		if f.slowTimer != nil {
			f.slowTimer.Stop()
		}
	}
}

// SuccessURL is the page shown once the payment has completed
func (f *PaymentForm) SuccessURL() string {
	return f.absolute(f.cfg.SuccessPath, f.checkout.SuccessQuery())
}

// ReturnURL is where the provider sends the user back to after an off-site
// authentication step.
func (f *PaymentForm) ReturnURL() string {
	return f.SuccessURL()
}

func (f *PaymentForm) absolute(path string, q url.Values) string {
	if path == "" {
		path = "/payment-success"
	}
	u := strings.TrimRight(f.cfg.BaseURL, "/") + path
	if encoded := q.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// Submit confirms the payment with the provider. While a confirmation is in
// flight further submissions are rejected.
func (f *PaymentForm) Submit(ctx context.Context, paymentMethod string) (*SubmitOutcome, error) {
	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return nil, models.ErrStaleIntent
	case f.state == FormSubmitting:
		f.mu.Unlock()
		return nil, models.ErrFormSubmitting
	case f.state == FormSucceeded:
		f.mu.Unlock()
		return &SubmitOutcome{Status: OutcomeSucceeded, NavigateURL: f.SuccessURL()}, nil
	case f.state != FormReady && f.state != FormFailed:
		f.mu.Unlock()
		return nil, models.ErrFormNotReady
	}
	f.state = FormSubmitting
	f.mu.Unlock()

	result, err := f.confirmer.Confirm(ctx, ConfirmRequest{
		ClientSecret:  f.handle.ClientSecret,
		PaymentMethod: paymentMethod,
		ReturnURL:     f.ReturnURL(),
	})
	if err != nil {
		f.fail(confirmErrorMessage(err))
		return &SubmitOutcome{Status: OutcomeFailed, Message: confirmErrorMessage(err)}, nil
	}

	switch result.Status {
	case models.ConfirmSucceeded, models.ConfirmProcessing:
		f.setState(FormSucceeded)
		f.log.WithField("status", result.Status).Info("payment confirmed")
		return &SubmitOutcome{Status: OutcomeSucceeded, NavigateURL: f.SuccessURL()}, nil
	case models.ConfirmRequiresAction:
		if result.RedirectURL != "" {
			f.setState(FormReady)
			return &SubmitOutcome{Status: OutcomeRedirect, RedirectURL: result.RedirectURL}, nil
		}
		fallthrough
	default:
		msg := result.Message
		if msg == "" {
			msg = "Your payment could not be completed."
		}
		f.fail(msg)
		return &SubmitOutcome{Status: OutcomeFailed, Message: msg}, nil
	}
}

func (f *PaymentForm) fail(msg string) {
	f.setState(FormFailed)
	f.log.WithField("reason", msg).Warn("payment confirmation failed")
	if f.notifier != nil {
		f.notifier.Notify(errorToast("Payment failed", msg))
	}
}

func (f *PaymentForm) setState(state FormState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.state = state
	}
}

func confirmErrorMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return "Your payment could not be completed. Please try again."
}

// Close stops the form's timers. A closed form rejects every event.
func (f *PaymentForm) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.graceTimer != nil {
		f.graceTimer.Stop()
	}
	if f.slowTimer != nil {
		f.slowTimer.Stop()
	}
}
