package models

import (
	"errors"
	"math"
	"strings"
)

// IntentItem is a line item sent with a payment intent request
type IntentItem struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// IntentRequest is the body of the create-intent endpoint. Amount is in
// decimal currency units and currency is lower case.
type IntentRequest struct {
	Amount     float64      `json:"amount"`
	Currency   string       `json:"currency"`
	EventID    int          `json:"eventId,omitempty"`
	EventTitle string       `json:"eventTitle,omitempty"`
	TicketID   int          `json:"ticketId,omitempty"`
	TicketName string       `json:"ticketName,omitempty"`
	Items      []IntentItem `json:"items"`
}

// NewIntentRequest builds the request for a checkout context
func NewIntentRequest(c CheckoutContext) IntentRequest {
	req := IntentRequest{
		Amount:     float64(c.AmountCents) / 100,
		Currency:   strings.ToLower(c.Currency),
		EventID:    c.EventID,
		EventTitle: c.EventTitle,
		TicketID:   c.TicketID,
		TicketName: c.TicketName,
		Items:      []IntentItem{},
	}
	if c.TicketID != 0 || c.TicketName != "" {
		req.Items = append(req.Items, IntentItem{ID: c.TicketID, Name: c.TicketName, Quantity: 1})
	}
	return req
}

// AmountCents converts the decimal amount to minor units
func (r *IntentRequest) AmountCents() int64 {
	if r.Amount <= 0 || math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		return 0
	}
	return int64(math.Round(r.Amount * 100))
}

// Validate validates an intent request
func (r *IntentRequest) Validate() error {
	if r.AmountCents() <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be a three letter ISO code")
	}
	return nil
}

// IntentResponse is returned by the create-intent endpoint
type IntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// PaymentIntentHandle is the live client secret for one checkout attempt.
// A retry always produces a new handle; handles are never reused.
type PaymentIntentHandle struct {
	ClientSecret string    `json:"client_secret"`
	RequestID    uint64    `json:"request_id"`
	Key          IntentKey `json:"-"`
}

// IntentID extracts the payment intent id from a client secret of the form
// "pi_123_secret_456".
func (h PaymentIntentHandle) IntentID() string {
	return IntentIDFromSecret(h.ClientSecret)
}

// IntentIDFromSecret extracts the intent id from a client secret
func IntentIDFromSecret(secret string) string {
	if i := strings.Index(secret, "_secret_"); i > 0 {
		return secret[:i]
	}
	return ""
}

// ConfirmStatus is the result class of a payment confirmation
type ConfirmStatus string

const (
	ConfirmSucceeded      ConfirmStatus = "succeeded"
	ConfirmProcessing     ConfirmStatus = "processing"
	ConfirmRequiresAction ConfirmStatus = "requires_action"
	ConfirmFailed         ConfirmStatus = "failed"
)

// ConfirmResult is what the payment provider reports after a confirm call
type ConfirmResult struct {
	Status      ConfirmStatus
	RedirectURL string
	Message     string
}
