package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"sg-checkout/internal/middleware"
	"sg-checkout/internal/models"
	"sg-checkout/internal/services"
)

const maxBodyBytes = 64 << 10

// APIHandler serves the JSON endpoints the checkout flow calls
type APIHandler struct {
	payments    services.PaymentServiceInterface
	freeTickets services.FreeTicketServiceInterface
	log         *logrus.Entry
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(payments services.PaymentServiceInterface, freeTickets services.FreeTicketServiceInterface, log *logrus.Logger) *APIHandler {
	return &APIHandler{
		payments:    payments,
		freeTickets: freeTickets,
		log:         log.WithField("subsystem", "api"),
	}
}

// Me returns the signed-in user
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "Not signed in")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CreateIntent creates a Stripe payment intent for the signed-in user
func (h *APIHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "Not signed in")
		return
	}

	var req models.IntentRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	resp, err := h.payments.CreateIntent(r.Context(), user.ID, &req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidInput):
			middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, models.ErrUnauthorized):
			middleware.WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "Not signed in")
		default:
			h.log.WithError(err).WithField("user_id", user.ID).Error("create intent failed")
			middleware.WriteJSONError(w, http.StatusBadGateway, "intent_failed", "Payment provider unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ClaimFreeTicket records a free ticket for the signed-in user
func (h *APIHandler) ClaimFreeTicket(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		middleware.WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "Not signed in")
		return
	}

	var req models.FreeTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	resp, err := h.freeTickets.Claim(user.ID, &req)
	if err != nil {
		status, code, msg := claimError(err)
		if status >= 500 {
			h.log.WithError(err).WithField("user_id", user.ID).Error("free ticket claim failed")
		}
		middleware.WriteJSONError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func claimError(err error) (int, string, string) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "Not signed in"
	case errors.Is(err, models.ErrInvalidTicket):
		return http.StatusBadRequest, "invalid_ticket", "This ticket does not belong to the event"
	case errors.Is(err, models.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "Ticket not found"
	case errors.Is(err, models.ErrNotFreeTicket):
		return http.StatusBadRequest, "not_free", "This ticket is not free"
	case errors.Is(err, models.ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed", "You have already claimed this ticket"
	case errors.Is(err, models.ErrInsufficientStock):
		return http.StatusConflict, "sold_out", "This ticket is sold out"
	}
	return http.StatusInternalServerError, "internal_error", "Could not claim the ticket"
}

// StripeWebhook applies Stripe payment intent events to orders
func (h *APIHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_request", "Could not read body")
		return
	}

	if err := h.payments.HandleWebhook(payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, services.ErrWebhookSignature) {
			middleware.WriteJSONError(w, http.StatusBadRequest, "invalid_signature", "Invalid signature")
			return
		}
		h.log.WithError(err).Error("webhook processing failed")
		middleware.WriteJSONError(w, http.StatusInternalServerError, "internal_error", "Webhook processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
