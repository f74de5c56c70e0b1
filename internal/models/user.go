package models

import (
	"encoding/json"
	"strings"
	"time"
)

// UserRole represents the role of a user in the system
type UserRole string

const (
	UserRoleUser     UserRole = "user"
	UserRolePromoter UserRole = "promoter"
	UserRoleAdmin    UserRole = "admin"
)

// User represents a user row in the database
type User struct {
	ID        int       `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Role      UserRole  `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GetFullName returns the user's full name
func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SessionUser is the record returned by the session endpoint. The checkout
// flow treats it as opaque apart from its identity; Raw keeps the full body.
type SessionUser struct {
	ID    int             `json:"id"`
	Email string          `json:"email"`
	Name  string          `json:"name,omitempty"`
	Role  UserRole        `json:"role,omitempty"`
	Raw   json.RawMessage `json:"-"`
}

// ToSessionUser converts a database user to the session payload.
func (u *User) ToSessionUser() *SessionUser {
	return &SessionUser{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.GetFullName(),
		Role:  u.Role,
	}
}
