package repositories

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sg-checkout/internal/database"
	"sg-checkout/internal/models"
)

// setupTestDB connects to TEST_DATABASE_URL and applies the migrations
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("Failed to ping test database: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	require.NoError(t, database.NewMigrator(db, log).RunMigrations())

	t.Cleanup(func() { db.Close() })
	return db
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(sql.ErrNoRows))
}

func TestRepositories_New(t *testing.T) {
	assert.NotNil(t, NewUserRepository(nil))
	assert.NotNil(t, NewTicketRepository(nil))
	assert.NotNil(t, NewOrderRepository(nil))
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	email := uniqueEmail("ada")
	user, err := repo.Create(email, "Ada", "Lovelace", "")
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleUser, user.Role)

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, "Ada Lovelace", got.GetFullName())

	_, err = repo.Create(email, "Ada", "Again", "")
	assert.Error(t, err)

	_, err = repo.GetByID(-1)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestTicketRepository_ClaimFree(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	tickets := NewTicketRepository(db)

	user, err := users.Create(uniqueEmail("claim"), "Grace", "Hopper", "")
	require.NoError(t, err)

	free := &models.TicketType{EventID: 7, Name: "General", Price: 0, Quantity: 1}
	require.NoError(t, tickets.CreateTicketType(free))
	paid := &models.TicketType{EventID: 7, Name: "VIP", Price: 2999, Quantity: 10}
	require.NoError(t, tickets.CreateTicketType(paid))

	claim, err := tickets.ClaimFree(user.ID, 7, free.ID, fmt.Sprintf("code-%d", time.Now().UnixNano()))
	require.NoError(t, err)
	assert.NotZero(t, claim.ID)

	_, err = tickets.ClaimFree(user.ID, 7, free.ID, fmt.Sprintf("code-%d", time.Now().UnixNano()))
	assert.ErrorIs(t, err, models.ErrAlreadyClaimed)

	other, err := users.Create(uniqueEmail("late"), "Late", "Comer", "")
	require.NoError(t, err)
	_, err = tickets.ClaimFree(other.ID, 7, free.ID, fmt.Sprintf("code-%d", time.Now().UnixNano()))
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	_, err = tickets.ClaimFree(user.ID, 7, paid.ID, "code-paid")
	assert.ErrorIs(t, err, models.ErrNotFreeTicket)

	_, err = tickets.ClaimFree(user.ID, 8, free.ID, "code-wrong-event")
	assert.ErrorIs(t, err, models.ErrInvalidTicket)

	updated, err := tickets.GetTicketType(free.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Sold)
}

func TestOrderRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	orders := NewOrderRepository(db)

	user, err := users.Create(uniqueEmail("order"), "Alan", "Turing", "")
	require.NoError(t, err)

	intentID := fmt.Sprintf("pi_test_%d", time.Now().UnixNano())
	req := &models.OrderCreateRequest{
		UserID:          user.ID,
		EventID:         7,
		TotalAmount:     2999,
		Currency:        "USD",
		PaymentIntentID: intentID,
		IdempotencyKey:  "idem-1",
	}

	order, err := orders.Create(req)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "usd", order.Currency)

	again, err := orders.Create(req)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)

	require.NoError(t, orders.UpdateStatusByPaymentIntent(intentID, models.OrderCompleted))
	require.NoError(t, orders.UpdateStatusByPaymentIntent(intentID, models.OrderFailed))

	got, err := orders.GetByPaymentIntentID(intentID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, got.Status)

	err = orders.UpdateStatusByPaymentIntent("pi_missing", models.OrderCompleted)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}
