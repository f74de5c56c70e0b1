package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"sg-checkout/internal/checkout"
	"sg-checkout/internal/events"
	"sg-checkout/internal/middleware"
	"sg-checkout/internal/models"
	"sg-checkout/web/templates/pages"
)

const qrSize = 256

// checkoutParam carries the checkout page id on every HTMX request of a page
const checkoutParam = "checkout"

// CheckoutHandler serves the checkout pages and their HTMX actions. Each
// checkout page of a browser session is driven by its own controller kept in
// the registry, so tabs never share a checkout.
type CheckoutHandler struct {
	registry       *checkout.Registry
	publishableKey string
	cashAppTag     string
	log            *logrus.Entry
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(registry *checkout.Registry, publishableKey, cashAppTag string, log *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		registry:       registry,
		publishableKey: publishableKey,
		cashAppTag:     cashAppTag,
		log:            log.WithField("subsystem", "checkout_http"),
	}
}

// Page renders the checkout page. A full page load is a fresh mount: the
// session check runs again and the paid branch requests its intent.
func (h *CheckoutHandler) Page(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetCheckoutSessionID(r.Context())
	if sessionID == "" {
		http.Error(w, "Checkout session unavailable", http.StatusBadRequest)
		return
	}

	params := models.ParseCheckoutContext(r.URL.Query())
	ctrl, created := h.registry.Get(sessionID, checkout.PageID(sessionID, params))
	ctrl.UseRequest(r)
	ctrl.Navigate(params)
	ctrl.Start(r.Context())

	if created {
		h.log.WithFields(logrus.Fields{
			"session_id":  sessionID,
			"checkout_id": ctrl.CheckoutID(),
		}).Debug("checkout controller created")
	}

	h.ensureIntent(r.Context(), ctrl)
	h.render(w, r, pages.CheckoutPage(h.pageData(ctrl, ctrl.Toasts().Drain())))
}

// Branch re-renders the branch section
func (h *CheckoutHandler) Branch(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.ensureIntent(r.Context(), ctrl)
	h.renderFragment(w, r, ctrl, pages.BranchSection(h.pageData(ctrl, nil)))
}

// Payment re-renders the payment section
func (h *CheckoutHandler) Payment(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.ensureIntent(r.Context(), ctrl)
	h.renderFragment(w, r, ctrl, h.paymentFragment(w, ctrl))
}

// RetryIntent requests a fresh client secret and rebuilds the card form
func (h *CheckoutHandler) RetryIntent(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if _, err := ctrl.RetryIntent(r.Context()); err != nil {
		if errors.Is(err, models.ErrWrongBranch) {
			w.Header().Set("HX-Refresh", "true")
			w.WriteHeader(http.StatusConflict)
			return
		}
		h.log.WithError(err).WithField("session_id", ctrl.SessionID()).Info("intent retry failed")
	}
	h.renderFragment(w, r, ctrl, h.paymentFragment(w, ctrl))
}

// FormState re-renders the submit button for the live form
func (h *CheckoutHandler) FormState(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if !h.checkSecret(w, r, ctrl, r.URL.Query().Get("client_secret")) {
		return
	}
	h.renderFragment(w, r, ctrl, pages.SubmitButton(ctrl.View()))
}

// SDKLoaded records that the payment SDK is available in the browser
func (h *CheckoutHandler) SDKLoaded(w http.ResponseWriter, r *http.Request) {
	h.formEvent(w, r, func(ctrl *checkout.Controller, secret string) error {
		return ctrl.SDKLoaded(secret)
	})
}

// ElementReady records the card element's ready callback
func (h *CheckoutHandler) ElementReady(w http.ResponseWriter, r *http.Request) {
	h.formEvent(w, r, func(ctrl *checkout.Controller, secret string) error {
		return ctrl.ElementReady(secret)
	})
}

// ElementChange records the card element's completeness
func (h *CheckoutHandler) ElementChange(w http.ResponseWriter, r *http.Request) {
	complete, _ := strconv.ParseBool(r.FormValue("complete"))
	h.formEvent(w, r, func(ctrl *checkout.Controller, secret string) error {
		return ctrl.ElementChange(secret, complete)
	})
}

func (h *CheckoutHandler) formEvent(w http.ResponseWriter, r *http.Request, apply func(*checkout.Controller, string) error) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	secret := r.FormValue("client_secret")
	if err := apply(ctrl, secret); err != nil {
		h.formError(w, r, ctrl, err)
		return
	}
	h.renderFragment(w, r, ctrl, pages.SubmitButton(ctrl.View()))
}

// Confirm submits the card payment with a payment method created by the
// browser SDK
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.UseRequest(r)

	outcome, err := ctrl.Confirm(r.Context(), r.FormValue("client_secret"), r.FormValue("payment_method"))
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			w.Header().Set("HX-Redirect", ctrl.AuthRedirect(events.TabSignIn))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h.formError(w, r, ctrl, err)
		return
	}

	switch outcome.Status {
	case checkout.OutcomeSucceeded:
		h.registry.Remove(ctrl.SessionID(), ctrl.CheckoutID())
		w.Header().Set("HX-Redirect", outcome.NavigateURL)
		w.WriteHeader(http.StatusOK)
	case checkout.OutcomeRedirect:
		w.Header().Set("HX-Redirect", outcome.RedirectURL)
		w.WriteHeader(http.StatusOK)
	default:
		h.renderFragment(w, r, ctrl, pages.SubmitButton(ctrl.View()))
	}
}

// ClaimFree claims the free ticket and schedules the move to the success page
func (h *CheckoutHandler) ClaimFree(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.UseRequest(r)

	outcome, err := ctrl.ClaimFree(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrWrongBranch):
			w.Header().Set("HX-Refresh", "true")
			w.WriteHeader(http.StatusConflict)
			return
		case errors.Is(err, models.ErrFormSubmitting):
			w.WriteHeader(http.StatusConflict)
			return
		}
		// the claimer already queued a toast describing the failure
		h.renderFragment(w, r, ctrl, pages.ClaimSection(ctrl.View()))
		return
	}

	h.renderFragment(w, r, ctrl, pages.ClaimRedirect(outcome.Message, outcome.SuccessURL, outcome.NavigateAfter))
}

// AuthRedirect opens the auth modal for the requested tab
func (h *CheckoutHandler) AuthRedirect(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	target := ctrl.AuthRedirect(chi.URLParam(r, "tab"))
	if middleware.IsHTMXRequest(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// CashAppQR serves the Cash App link as a PNG QR code
func (h *CheckoutHandler) CashAppQR(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	link := checkout.CashAppLink(h.cashAppTag, ctrl.Checkout())
	if link == "" {
		http.NotFound(w, r)
		return
	}

	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		h.log.WithError(err).Error("failed to encode Cash App QR code")
		http.Error(w, "Could not generate QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// PaymentSuccess renders the confirmation page. Stripe redirects land here
// with redirect_status set.
func (h *CheckoutHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := pages.SuccessPageData{
		EventTitle: q.Get("eventTitle"),
		TicketName: q.Get("ticketName"),
		Status:     q.Get("redirect_status"),
	}
	data.EventID, _ = strconv.Atoi(q.Get("eventId"))
	data.TicketID, _ = strconv.Atoi(q.Get("ticketId"))

	sessionID := middleware.GetCheckoutSessionID(r.Context())
	if checkoutID := q.Get(checkoutParam); sessionID != "" && checkoutID != "" && !data.Failed() {
		h.registry.Remove(sessionID, checkoutID)
	}
	h.render(w, r, pages.PaymentSuccessPage(data))
}

func (h *CheckoutHandler) controller(w http.ResponseWriter, r *http.Request) (*checkout.Controller, bool) {
	ctrl, ok := h.registry.Lookup(middleware.GetCheckoutSessionID(r.Context()), r.FormValue(checkoutParam))
	if !ok {
		// expired, evicted or never opened; a reload rebuilds it from the URL
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusGone)
		return nil, false
	}
	return ctrl, true
}

func (h *CheckoutHandler) ensureIntent(ctx context.Context, ctrl *checkout.Controller) {
	if ctrl.Branch() != models.BranchPaid {
		return
	}
	if _, err := ctrl.EnsureIntent(ctx); err != nil && !errors.Is(err, models.ErrStaleIntent) {
		h.log.WithError(err).WithField("session_id", ctrl.SessionID()).Info("payment intent unavailable")
	}
}

func (h *CheckoutHandler) checkSecret(w http.ResponseWriter, r *http.Request, ctrl *checkout.Controller, secret string) bool {
	if form := ctrl.Form(); form == nil || form.ClientSecret() != secret {
		h.formError(w, r, ctrl, models.ErrStaleIntent)
		return false
	}
	return true
}

// formError answers a card form action that could not be applied
func (h *CheckoutHandler) formError(w http.ResponseWriter, r *http.Request, ctrl *checkout.Controller, err error) {
	switch {
	case errors.Is(err, models.ErrStaleIntent), errors.Is(err, models.ErrNoIntent):
		// the page holds a secret that has since been replaced
		ctrl.Toasts().Notify(models.Toast{
			Title:       "Payment form refreshed",
			Description: "Your payment session changed. Please review and try again.",
			Variant:     "destructive",
		})
		setToastTrigger(w, ctrl.Toasts().Drain())
		w.Header().Set("HX-Retarget", "#payment-section")
		w.Header().Set("HX-Reswap", "outerHTML")
		fragment := h.paymentFragment(w, ctrl)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		h.writeComponent(w, r, fragment)
	case errors.Is(err, models.ErrFormNotReady), errors.Is(err, models.ErrFormSubmitting):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		h.writeComponent(w, r, pages.SubmitButton(ctrl.View()))
	default:
		h.log.WithError(err).WithField("session_id", ctrl.SessionID()).Error("card form action failed")
		setToastTrigger(w, ctrl.Toasts().Drain())
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// paymentFragment renders the payment section, or the whole branch once the
// checkout is no longer on the paid branch (for example after the backend
// rejected the session).
func (h *CheckoutHandler) paymentFragment(w http.ResponseWriter, ctrl *checkout.Controller) templ.Component {
	data := h.pageData(ctrl, nil)
	if data.View.Branch == models.BranchPaid {
		return pages.PaymentSection(data)
	}
	w.Header().Set("HX-Retarget", "#checkout-branch")
	w.Header().Set("HX-Reswap", "outerHTML")
	return pages.BranchSection(data)
}

func (h *CheckoutHandler) pageData(ctrl *checkout.Controller, toasts []models.Toast) pages.CheckoutPageData {
	view := ctrl.View()
	data := pages.CheckoutPageData{
		View:           view,
		PublishableKey: h.publishableKey,
		Toasts:         toasts,
	}
	if view.CashAppURL != "" {
		qr, err := checkout.CashAppQRCode(view.CashAppURL, qrSize)
		if err != nil {
			h.log.WithError(err).Warn("failed to render Cash App QR code")
		}
		data.CashAppQR = qr
	}
	return data
}

// renderFragment writes an HTMX fragment, carrying queued toasts in HX-Trigger
func (h *CheckoutHandler) renderFragment(w http.ResponseWriter, r *http.Request, ctrl *checkout.Controller, c templ.Component) {
	setToastTrigger(w, ctrl.Toasts().Drain())
	h.render(w, r, c)
}

func (h *CheckoutHandler) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.writeComponent(w, r, c)
}

func (h *CheckoutHandler) writeComponent(w http.ResponseWriter, r *http.Request, c templ.Component) {
	if err := c.Render(r.Context(), w); err != nil {
		h.log.WithError(err).Error("failed to render component")
	}
}

// setToastTrigger raises showToast on the client for each queued toast
func setToastTrigger(w http.ResponseWriter, toasts []models.Toast) {
	if len(toasts) == 0 {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"showToast": map[string]interface{}{"toasts": toasts},
	})
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", string(payload))
}
