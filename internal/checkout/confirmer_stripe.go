package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"sg-checkout/internal/models"
)

// ProviderError is a payment failure reported by the provider with a message
// that can be shown to the user as is.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider error (%s): %s", e.Code, e.Message)
	}
	return "payment provider error: " + e.Message
}

// StripeConfirmer confirms payment intents through the Stripe API
type StripeConfirmer struct {
	client paymentintent.Client
	log    *logrus.Entry
}

// NewStripeConfirmer creates a confirmer for a secret key. A nil backend uses
// the default Stripe API backend.
func NewStripeConfirmer(secretKey string, backend stripe.Backend, log *logrus.Logger) *StripeConfirmer {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeConfirmer{
		client: paymentintent.Client{B: backend, Key: secretKey},
		log:    log.WithField("subsystem", "stripe"),
	}
}

// Confirm attaches the payment method to the intent behind the client
// secret and confirms it.
func (c *StripeConfirmer) Confirm(ctx context.Context, req ConfirmRequest) (*models.ConfirmResult, error) {
	intentID := models.IntentIDFromSecret(req.ClientSecret)
	if intentID == "" {
		return nil, fmt.Errorf("%w: malformed client secret", models.ErrInvalidInput)
	}
	if req.PaymentMethod == "" {
		return nil, &ProviderError{Code: "missing_payment_method", Message: "Please enter your card details."}
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(req.PaymentMethod),
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripe.String(req.ReturnURL)
	}
	params.Context = ctx

	pi, err := c.client.Confirm(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			c.log.WithFields(logrus.Fields{
				"intent": intentID,
				"code":   stripeErr.Code,
			}).Warn("payment confirmation rejected")
			return nil, &ProviderError{Code: string(stripeErr.Code), Message: declineMessage(stripeErr)}
		}
		return nil, fmt.Errorf("failed to confirm payment intent: %w", err)
	}

	return confirmResult(pi), nil
}

func confirmResult(pi *stripe.PaymentIntent) *models.ConfirmResult {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &models.ConfirmResult{Status: models.ConfirmSucceeded}
	case stripe.PaymentIntentStatusProcessing:
		return &models.ConfirmResult{Status: models.ConfirmProcessing}
	case stripe.PaymentIntentStatusRequiresAction:
		result := &models.ConfirmResult{Status: models.ConfirmRequiresAction}
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
			result.RedirectURL = pi.NextAction.RedirectToURL.URL
		}
		return result
	default:
		msg := fmt.Sprintf("Payment status: %s", pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		return &models.ConfirmResult{Status: models.ConfirmFailed, Message: msg}
	}
}

func declineMessage(err *stripe.Error) string {
	switch err.Code {
	case stripe.ErrorCodeCardDeclined:
		return "Your card was declined"
	case stripe.ErrorCodeInsufficientFunds:
		return "Insufficient funds"
	case stripe.ErrorCodeIncorrectCVC:
		return "Incorrect CVC"
	case stripe.ErrorCodeExpiredCard:
		return "Your card has expired"
	}
	if err.Msg != "" {
		return err.Msg
	}
	return "Your payment could not be completed."
}
