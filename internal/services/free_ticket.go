package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sg-checkout/internal/models"
)

// FreeTicketService hands out zero-price tickets
type FreeTicketService struct {
	ticketRepo TicketRepository
	log        *logrus.Entry
}

// NewFreeTicketService creates a new free ticket service
func NewFreeTicketService(ticketRepo TicketRepository, log *logrus.Logger) *FreeTicketService {
	return &FreeTicketService{
		ticketRepo: ticketRepo,
		log:        log.WithField("subsystem", "free_ticket"),
	}
}

// Claim records a free ticket for the user. Rule violations come back as
// errors wrapping the model sentinels.
func (s *FreeTicketService) Claim(userID int, req *models.FreeTicketRequest) (*models.FreeTicketResponse, error) {
	if userID <= 0 {
		return nil, models.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidTicket, err)
	}

	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	claim, err := s.ticketRepo.ClaimFree(userID, req.EventID, req.TicketID, code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTicketNotFound),
			errors.Is(err, models.ErrInvalidTicket),
			errors.Is(err, models.ErrNotFreeTicket),
			errors.Is(err, models.ErrAlreadyClaimed),
			errors.Is(err, models.ErrInsufficientStock):
			return nil, err
		}
		s.log.WithError(err).WithField("ticket_id", req.TicketID).Error("failed to claim free ticket")
		return nil, fmt.Errorf("failed to claim free ticket: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"event_id":  req.EventID,
		"ticket_id": req.TicketID,
		"claim_id":  claim.ID,
	}).Info("free ticket claimed")

	name := req.TicketName
	if name == "" {
		name = "ticket"
	}
	msg := fmt.Sprintf("Your free %s is confirmed. Claim code %s.", name, claim.ClaimCode)
	if req.EventTitle != "" {
		msg = fmt.Sprintf("Your free %s for %s is confirmed. Claim code %s.", name, req.EventTitle, claim.ClaimCode)
	}
	return &models.FreeTicketResponse{Success: true, Message: msg}, nil
}
