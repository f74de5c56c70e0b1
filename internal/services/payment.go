package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"sg-checkout/internal/models"
)

// ErrWebhookSignature is returned for webhook payloads that fail verification
var ErrWebhookSignature = errors.New("invalid webhook signature")

// PaymentService creates card payment intents and settles orders from
// provider webhooks.
type PaymentService struct {
	intents       IntentCreator
	orderRepo     OrderRepository
	userRepo      UserRepository
	webhookSecret string
	log           *logrus.Entry
}

// NewPaymentService creates a new payment service
func NewPaymentService(intents IntentCreator, orderRepo OrderRepository, userRepo UserRepository, webhookSecret string, log *logrus.Logger) *PaymentService {
	return &PaymentService{
		intents:       intents,
		orderRepo:     orderRepo,
		userRepo:      userRepo,
		webhookSecret: webhookSecret,
		log:           log.WithField("subsystem", "payment"),
	}
}

// CreateIntent creates a payment intent for a signed-in user and records a
// pending order for it.
func (s *PaymentService) CreateIntent(ctx context.Context, userID int, req *models.IntentRequest, idempotencyKey string) (*models.IntentResponse, error) {
	if userID <= 0 {
		return nil, models.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	params := IntentParams{
		AmountCents:    req.AmountCents(),
		Currency:       strings.ToLower(req.Currency),
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]string{
			"user_id": itoa(userID),
		},
	}
	if req.EventID > 0 {
		params.Metadata["event_id"] = itoa(req.EventID)
	}
	if req.EventTitle != "" {
		params.Metadata["event_title"] = req.EventTitle
	}
	if req.TicketID > 0 {
		params.Metadata["ticket_id"] = itoa(req.TicketID)
	}
	if req.TicketName != "" {
		params.Metadata["ticket_name"] = req.TicketName
	}
	if user, err := s.userRepo.GetByID(userID); err == nil {
		params.ReceiptEmail = user.Email
	}

	pi, err := s.intents.CreateIntent(ctx, params)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to create payment intent")
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	_, err = s.orderRepo.Create(&models.OrderCreateRequest{
		UserID:          userID,
		EventID:         req.EventID,
		TicketTypeID:    req.TicketID,
		TotalAmount:     params.AmountCents,
		Currency:        params.Currency,
		PaymentIntentID: pi.ID,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		// the intent exists upstream; the webhook will find no order and log it
		s.log.WithError(err).WithField("intent", pi.ID).Error("failed to record pending order")
	}

	s.log.WithFields(logrus.Fields{
		"intent":   pi.ID,
		"user_id":  userID,
		"amount":   params.AmountCents,
		"currency": params.Currency,
	}).Info("payment intent created")

	return &models.IntentResponse{ClientSecret: pi.ClientSecret}, nil
}

// HandleWebhook verifies a Stripe webhook and updates the matching order
func (s *PaymentService) HandleWebhook(payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return errors.New("stripe webhook secret not configured")
	}

	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.log.WithError(err).Warn("webhook signature verification failed")
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	var status models.OrderStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = models.OrderCompleted
	case "payment_intent.payment_failed":
		status = models.OrderFailed
	case "payment_intent.canceled":
		status = models.OrderCancelled
	default:
		s.log.WithField("type", event.Type).Debug("ignoring webhook event")
		return nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("failed to decode payment intent: %w", err)
	}

	log := s.log.WithFields(logrus.Fields{"intent": pi.ID, "type": event.Type, "event": event.ID})
	if err := s.orderRepo.UpdateStatusByPaymentIntent(pi.ID, status); err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			log.Warn("webhook for unknown order")
			return nil
		}
		return fmt.Errorf("failed to update order: %w", err)
	}

	log.WithField("status", status).Info("order updated from webhook")
	return nil
}
