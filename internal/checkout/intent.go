package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/models"
)

// IntentBootstrapper asks the backend for a card payment intent
type IntentBootstrapper struct {
	api   API
	creds *Credentials
	paths []string
	log   *logrus.Entry
}

// NewIntentBootstrapper creates a bootstrapper trying paths in order
func NewIntentBootstrapper(api API, creds *Credentials, paths []string, log *logrus.Logger) *IntentBootstrapper {
	return &IntentBootstrapper{
		api:   api,
		creds: creds,
		paths: paths,
		log:   log.WithField("subsystem", "intent"),
	}
}

// NewIdempotencyKey returns a fresh key for one intent attempt
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// Create requests a client secret. The same idempotency key is sent to every
// candidate path so a fallback cannot create a second intent upstream.
func (b *IntentBootstrapper) Create(ctx context.Context, checkout models.CheckoutContext, idempotencyKey string) (string, error) {
	if checkout.AmountCents <= 0 {
		return "", fmt.Errorf("%w: amount must be greater than zero", models.ErrInvalidInput)
	}

	header := b.creds.Header()
	header.Set("Idempotency-Key", idempotencyKey)

	var resp models.IntentResponse
	result, err := b.api.Do(ctx, backend.Request{
		Method:         http.MethodPost,
		Paths:          b.paths,
		Body:           models.NewIntentRequest(checkout),
		Header:         header,
		ShouldFallback: backend.FallbackUnlessUnauthorized,
	}, &resp)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", models.ErrIntentUnavailable, err)
	}
	if resp.ClientSecret == "" {
		return "", fmt.Errorf("%w: response has no client secret", models.ErrIntentUnavailable)
	}

	b.log.WithFields(logrus.Fields{
		"path":     result.Path,
		"attempts": result.Attempts,
		"intent":   models.IntentIDFromSecret(resp.ClientSecret),
	}).Info("payment intent created")
	return resp.ClientSecret, nil
}
