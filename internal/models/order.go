package models

import (
	"errors"
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a paid checkout attempt backed by a payment intent
type Order struct {
	ID              int         `json:"id" db:"id"`
	UserID          int         `json:"user_id" db:"user_id"`
	EventID         int         `json:"event_id" db:"event_id"`
	TicketTypeID    int         `json:"ticket_type_id" db:"ticket_type_id"`
	TotalAmount     int64       `json:"total_amount" db:"total_amount"` // Amount in cents
	Currency        string      `json:"currency" db:"currency"`
	Status          OrderStatus `json:"status" db:"status"`
	PaymentIntentID string      `json:"payment_intent_id" db:"payment_intent_id"`
	IdempotencyKey  string      `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderCreateRequest represents the data needed to record a new order
type OrderCreateRequest struct {
	UserID          int
	EventID         int
	TicketTypeID    int
	TotalAmount     int64
	Currency        string
	PaymentIntentID string
	IdempotencyKey  string
}

// Validate validates order creation data
func (req *OrderCreateRequest) Validate() error {
	if req.UserID <= 0 {
		return errors.New("user id is required")
	}
	if req.TotalAmount <= 0 {
		return errors.New("total amount must be positive")
	}
	if req.Currency == "" {
		return errors.New("currency is required")
	}
	if req.PaymentIntentID == "" {
		return errors.New("payment intent id is required")
	}
	return nil
}
