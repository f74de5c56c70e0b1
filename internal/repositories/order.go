package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sg-checkout/internal/models"
)

// OrderRepository handles order data operations
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, event_id, ticket_type_id, total_amount, currency, status,
	payment_intent_id, idempotency_key, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	var ticketTypeID sql.NullInt64
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.EventID,
		&ticketTypeID,
		&order.TotalAmount,
		&order.Currency,
		&order.Status,
		&order.PaymentIntentID,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if ticketTypeID.Valid {
		order.TicketTypeID = int(ticketTypeID.Int64)
	}
	return order, err
}

// Create records a pending order for a payment intent. Creating the same
// intent twice returns the existing order, since an idempotent intent
// request hands back the same intent.
func (r *OrderRepository) Create(req *models.OrderCreateRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var ticketTypeID sql.NullInt64
	if req.TicketTypeID > 0 {
		ticketTypeID = sql.NullInt64{Int64: int64(req.TicketTypeID), Valid: true}
	}

	query := `
		INSERT INTO orders (user_id, event_id, ticket_type_id, total_amount, currency, status,
			payment_intent_id, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (payment_intent_id) DO NOTHING
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRow(query,
		req.UserID,
		req.EventID,
		ticketTypeID,
		req.TotalAmount,
		strings.ToLower(req.Currency),
		models.OrderPending,
		req.PaymentIntentID,
		req.IdempotencyKey,
		time.Now(),
	))
	if err == sql.ErrNoRows {
		return r.GetByPaymentIntentID(req.PaymentIntentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

// GetByPaymentIntentID retrieves the order for a payment intent
func (r *OrderRepository) GetByPaymentIntentID(paymentIntentID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_intent_id = $1`

	order, err := scanOrder(r.db.QueryRow(query, paymentIntentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// UpdateStatusByPaymentIntent moves a pending order to status. Orders that
// already completed are left alone.
func (r *OrderRepository) UpdateStatusByPaymentIntent(paymentIntentID string, status models.OrderStatus) error {
	result, err := r.db.Exec(`
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE payment_intent_id = $3 AND status <> $4`,
		status, time.Now(), paymentIntentID, models.OrderCompleted)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByPaymentIntentID(paymentIntentID); err != nil {
			return err
		}
	}
	return nil
}
