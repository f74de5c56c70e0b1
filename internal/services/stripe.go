package services

import (
	"context"
	"strconv"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// IntentParams describes a payment intent to create
type IntentParams struct {
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	ReceiptEmail   string
	Metadata       map[string]string
}

// StripeIntentCreator creates payment intents through the Stripe API
type StripeIntentCreator struct {
	client paymentintent.Client
}

// NewStripeIntentCreator creates a creator for a secret key. A nil backend
// uses the default Stripe API backend.
func NewStripeIntentCreator(secretKey string, backend stripe.Backend) *StripeIntentCreator {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeIntentCreator{client: paymentintent.Client{B: backend, Key: secretKey}}
}

// CreateIntent creates a card payment intent with automatic payment methods
func (c *StripeIntentCreator) CreateIntent(ctx context.Context, p IntentParams) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountCents),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(p.ReceiptEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}
	params.Context = ctx

	return c.client.New(params)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
