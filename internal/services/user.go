package services

import (
	"errors"
	"fmt"

	"sg-checkout/internal/models"
)

// UserService resolves session users
type UserService struct {
	userRepo UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetSessionUser returns the session payload for an active user
func (s *UserService) GetSessionUser(userID int) (*models.SessionUser, error) {
	if userID <= 0 {
		return nil, models.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if !user.IsActive {
		return nil, models.ErrUnauthorized
	}
	return user.ToSessionUser(), nil
}

// FindByEmail looks up an active user by email
func (s *UserService) FindByEmail(email string) (*models.SessionUser, error) {
	if email == "" {
		return nil, models.ErrUserNotFound
	}
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, models.ErrUserNotFound
	}
	return user.ToSessionUser(), nil
}
