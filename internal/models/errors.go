package models

import "errors"

// Common errors used throughout the application
var (
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTicket     = errors.New("invalid ticket")
	ErrUserNotFound      = errors.New("user not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrNotFreeTicket     = errors.New("ticket is not free")
	ErrAlreadyClaimed    = errors.New("ticket already claimed")
	ErrInsufficientStock = errors.New("insufficient ticket stock")
	ErrIntentUnavailable = errors.New("payment intent could not be created")
	ErrFormNotReady      = errors.New("payment form is not ready")
	ErrFormSubmitting    = errors.New("payment is already being submitted")
	ErrStaleIntent       = errors.New("payment intent is no longer current")
	ErrNoIntent          = errors.New("no live payment intent")
	ErrWrongBranch       = errors.New("action not available for the current checkout branch")
)

