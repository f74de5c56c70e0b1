package models

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// DefaultCurrency is used when the checkout link carries no currency.
const DefaultCurrency = "USD"

// MaxAmountCents is the largest amount a checkout link may carry
// (999,999.99, Stripe's per-charge ceiling for USD).
const MaxAmountCents = 99999999

// CheckoutContext is the set of parameters a checkout page is opened with.
// It is built once per navigation and never mutated afterwards.
type CheckoutContext struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	EventID     int    `json:"event_id,omitempty"`
	EventTitle  string `json:"event_title,omitempty"`
	TicketID    int    `json:"ticket_id,omitempty"`
	TicketName  string `json:"ticket_name,omitempty"`
}

// IntentKey identifies the parameter set a payment intent was created for.
type IntentKey struct {
	AmountCents int64
	Currency    string
	EventID     int
}

func (k IntentKey) String() string {
	return fmt.Sprintf("%d:%s:%d", k.AmountCents, strings.ToLower(k.Currency), k.EventID)
}

// ParseCheckoutContext reads the checkout query string. Unknown or malformed
// values fall back to their zero value.
func ParseCheckoutContext(q url.Values) CheckoutContext {
	ctx := CheckoutContext{
		AmountCents: parseAmountCents(q.Get("amount")),
		Currency:    strings.ToUpper(strings.TrimSpace(q.Get("currency"))),
		EventTitle:  strings.TrimSpace(q.Get("title")),
		TicketName:  strings.TrimSpace(q.Get("ticketName")),
	}
	if ctx.Currency == "" {
		ctx.Currency = DefaultCurrency
	}
	if ctx.EventTitle == "" {
		ctx.EventTitle = strings.TrimSpace(q.Get("eventTitle"))
	}
	ctx.EventID = parsePositiveInt(q.Get("eventId"))
	ctx.TicketID = parsePositiveInt(q.Get("ticketId"))
	return ctx
}

func parseAmountCents(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	// compared as float so absurd values never reach the int64 conversion
	cents := math.Round(amount * 100)
	if cents < 1 || cents > MaxAmountCents {
		return 0
	}
	return int64(cents)
}

func parsePositiveInt(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// IsFree reports whether the checkout is for a zero-amount ticket.
func (c CheckoutContext) IsFree() bool {
	return c.AmountCents == 0
}

// Key returns the intent identity for this checkout.
func (c CheckoutContext) Key() IntentKey {
	return IntentKey{AmountCents: c.AmountCents, Currency: strings.ToLower(c.Currency), EventID: c.EventID}
}

// Amount returns the decimal amount as sent on the wire, e.g. "29.99".
func (c CheckoutContext) Amount() string {
	return FormatAmount(c.AmountCents)
}

// DisplayAmount formats the amount for the order summary, e.g. "$29.99".
func (c CheckoutContext) DisplayAmount() string {
	symbol := currencySymbols[strings.ToUpper(c.Currency)]
	if symbol == "" {
		return FormatAmount(c.AmountCents) + " " + strings.ToUpper(c.Currency)
	}
	return symbol + FormatAmount(c.AmountCents)
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"EUR": "€",
	"GBP": "£",
	"TTD": "TT$",
	"JMD": "J$",
}

// FormatAmount renders minor units as a decimal string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// Query re-encodes every known parameter so a page can be reopened in an
// equivalent state.
func (c CheckoutContext) Query() url.Values {
	q := url.Values{}
	if c.EventID != 0 {
		q.Set("eventId", strconv.Itoa(c.EventID))
	}
	if c.EventTitle != "" {
		q.Set("title", c.EventTitle)
	}
	q.Set("amount", c.Amount())
	if c.Currency != "" {
		q.Set("currency", c.Currency)
	}
	if c.TicketID != 0 {
		q.Set("ticketId", strconv.Itoa(c.TicketID))
	}
	if c.TicketName != "" {
		q.Set("ticketName", c.TicketName)
	}
	return q
}

// SuccessQuery is the query string consumed by the payment success page.
func (c CheckoutContext) SuccessQuery() url.Values {
	q := url.Values{}
	if c.EventID != 0 {
		q.Set("eventId", strconv.Itoa(c.EventID))
	}
	if c.EventTitle != "" {
		q.Set("eventTitle", c.EventTitle)
	}
	if c.TicketID != 0 {
		q.Set("ticketId", strconv.Itoa(c.TicketID))
	}
	if c.TicketName != "" {
		q.Set("ticketName", c.TicketName)
	}
	return q
}

// Branch is the render branch chosen for a checkout page.
type Branch string

const (
	BranchLoading      Branch = "loading"
	BranchAuthRequired Branch = "auth_required"
	BranchFreeTicket   Branch = "free_ticket"
	BranchPaid         Branch = "paid"
)

// Toast is a user-visible notification.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Variant     string `json:"variant,omitempty"` // "default" or "destructive"
}
