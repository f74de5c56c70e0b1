package models

import (
	"errors"
	"time"
)

// TicketType represents a type of ticket for an event
type TicketType struct {
	ID        int       `json:"id" db:"id"`
	EventID   int       `json:"event_id" db:"event_id"`
	Name      string    `json:"name" db:"name"`
	Price     int       `json:"price" db:"price"` // Price in cents
	Quantity  int       `json:"quantity" db:"quantity"`
	Sold      int       `json:"sold" db:"sold"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Available returns the number of tickets left
func (tt *TicketType) Available() int {
	if left := tt.Quantity - tt.Sold; left > 0 {
		return left
	}
	return 0
}

// IsFree reports whether the ticket type costs nothing
func (tt *TicketType) IsFree() bool {
	return tt.Price == 0
}

// FreeTicketClaim records a zero-amount ticket handed to a user
type FreeTicketClaim struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	EventID      int       `json:"event_id" db:"event_id"`
	TicketTypeID int       `json:"ticket_type_id" db:"ticket_type_id"`
	ClaimCode    string    `json:"claim_code" db:"claim_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// FreeTicketRequest is the body of the free-ticket claim endpoint
type FreeTicketRequest struct {
	EventID    int    `json:"eventId"`
	EventTitle string `json:"eventTitle"`
	TicketID   int    `json:"ticketId"`
	TicketName string `json:"ticketName"`
}

// Validate checks the identifiers a claim needs
func (req *FreeTicketRequest) Validate() error {
	if req.EventID <= 0 {
		return errors.New("event id is required")
	}
	if req.TicketID <= 0 {
		return errors.New("ticket id is required")
	}
	return nil
}

// FreeTicketResponse is returned by the free-ticket claim endpoint
type FreeTicketResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
