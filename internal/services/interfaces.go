package services

import (
	"context"

	"github.com/stripe/stripe-go/v74"

	"sg-checkout/internal/models"
)

// UserRepository is the user storage used by the services
type UserRepository interface {
	GetByID(id int) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
}

// TicketRepository is the ticket storage used by the services
type TicketRepository interface {
	GetTicketType(id int) (*models.TicketType, error)
	ClaimFree(userID, eventID, ticketTypeID int, claimCode string) (*models.FreeTicketClaim, error)
}

// OrderRepository is the order storage used by the services
type OrderRepository interface {
	Create(req *models.OrderCreateRequest) (*models.Order, error)
	UpdateStatusByPaymentIntent(paymentIntentID string, status models.OrderStatus) error
}

// IntentCreator creates payment intents with the payment provider
type IntentCreator interface {
	CreateIntent(ctx context.Context, params IntentParams) (*stripe.PaymentIntent, error)
}

// UserServiceInterface defines the interface for session user lookups
type UserServiceInterface interface {
	GetSessionUser(userID int) (*models.SessionUser, error)
	FindByEmail(email string) (*models.SessionUser, error)
}

// PaymentServiceInterface defines the interface for card payments
type PaymentServiceInterface interface {
	CreateIntent(ctx context.Context, userID int, req *models.IntentRequest, idempotencyKey string) (*models.IntentResponse, error)
	HandleWebhook(payload []byte, signature string) error
}

// FreeTicketServiceInterface defines the interface for free ticket claims
type FreeTicketServiceInterface interface {
	Claim(userID int, req *models.FreeTicketRequest) (*models.FreeTicketResponse, error)
}
