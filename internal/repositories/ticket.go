package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"sg-checkout/internal/models"
)

// TicketRepository handles ticket type and free claim operations
type TicketRepository struct {
	db *sql.DB
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// CreateTicketType inserts a ticket type
func (r *TicketRepository) CreateTicketType(tt *models.TicketType) error {
	if tt.EventID <= 0 || tt.Name == "" || tt.Price < 0 || tt.Quantity < 0 {
		return fmt.Errorf("validation failed: %w", models.ErrInvalidInput)
	}

	query := `
		INSERT INTO ticket_types (event_id, name, price, quantity, sold, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING id, sold, created_at`

	err := r.db.QueryRow(query, tt.EventID, tt.Name, tt.Price, tt.Quantity, time.Now()).
		Scan(&tt.ID, &tt.Sold, &tt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket type: %w", err)
	}
	return nil
}

// GetTicketType retrieves a ticket type by ID
func (r *TicketRepository) GetTicketType(id int) (*models.TicketType, error) {
	query := `
		SELECT id, event_id, name, price, quantity, sold, created_at
		FROM ticket_types
		WHERE id = $1`

	tt := &models.TicketType{}
	err := r.db.QueryRow(query, id).Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Price, &tt.Quantity, &tt.Sold, &tt.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}
	return tt, nil
}

// ClaimFree records a free ticket for a user. The ticket type row is locked
// for the duration of the claim so stock cannot be oversold.
func (r *TicketRepository) ClaimFree(userID, eventID, ticketTypeID int, claimCode string) (*models.FreeTicketClaim, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tt := &models.TicketType{}
	err = tx.QueryRow(`
		SELECT id, event_id, name, price, quantity, sold
		FROM ticket_types
		WHERE id = $1
		FOR UPDATE`, ticketTypeID).
		Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Price, &tt.Quantity, &tt.Sold)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to lock ticket type: %w", err)
	}

	if tt.EventID != eventID {
		return nil, models.ErrInvalidTicket
	}
	if !tt.IsFree() {
		return nil, models.ErrNotFreeTicket
	}
	if tt.Available() == 0 {
		return nil, models.ErrInsufficientStock
	}

	claim := &models.FreeTicketClaim{
		UserID:       userID,
		EventID:      eventID,
		TicketTypeID: ticketTypeID,
		ClaimCode:    claimCode,
	}
	err = tx.QueryRow(`
		INSERT INTO free_ticket_claims (user_id, event_id, ticket_type_id, claim_code, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		userID, eventID, ticketTypeID, claimCode, time.Now()).
		Scan(&claim.ID, &claim.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to insert claim: %w", err)
	}

	if _, err := tx.Exec(`UPDATE ticket_types SET sold = sold + 1 WHERE id = $1`, ticketTypeID); err != nil {
		return nil, fmt.Errorf("failed to update ticket stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return claim, nil
}
