package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/models"
)

// ClaimOutcome tells the page where to go after a successful claim
type ClaimOutcome struct {
	Message    string
	SuccessURL string
	// NavigateAfter is how long the confirmation toast stays up before the
	// page moves on.
	NavigateAfter time.Duration
}

// FreeTicketClaimer records zero-price tickets without a payment step
type FreeTicketClaimer struct {
	api         API
	creds       *Credentials
	paths       []string
	notifier    Notifier
	navDelay    time.Duration
	baseURL     string
	successPath string
	log         *logrus.Entry
}

// NewFreeTicketClaimer creates a claimer trying paths in order
func NewFreeTicketClaimer(api API, creds *Credentials, paths []string, notifier Notifier, navDelay time.Duration, form FormConfig, log *logrus.Logger) *FreeTicketClaimer {
	successPath := form.SuccessPath
	if successPath == "" {
		successPath = "/payment-success"
	}
	return &FreeTicketClaimer{
		api:         api,
		creds:       creds,
		paths:       paths,
		notifier:    notifier,
		navDelay:    navDelay,
		baseURL:     strings.TrimRight(form.BaseURL, "/"),
		successPath: successPath,
		log:         log.WithField("subsystem", "free_ticket"),
	}
}

// Claim validates the preconditions locally and then records the claim.
// Missing identifiers never reach the network.
func (c *FreeTicketClaimer) Claim(ctx context.Context, user *models.SessionUser, checkout models.CheckoutContext) (*ClaimOutcome, error) {
	if user == nil {
		c.notify(errorToast("Sign in required", "Please sign in to claim this ticket."))
		return nil, models.ErrUnauthorized
	}
	if checkout.EventID == 0 || checkout.TicketID == 0 {
		c.notify(errorToast("Invalid Ticket", "This ticket link is missing event or ticket details."))
		return nil, models.ErrInvalidTicket
	}
	if !checkout.IsFree() {
		return nil, models.ErrNotFreeTicket
	}

	body := models.FreeTicketRequest{
		EventID:    checkout.EventID,
		EventTitle: checkout.EventTitle,
		TicketID:   checkout.TicketID,
		TicketName: checkout.TicketName,
	}

	var resp models.FreeTicketResponse
	result, err := c.api.Do(ctx, backend.Request{
		Method:         http.MethodPost,
		Paths:          c.paths,
		Body:           body,
		Header:         c.creds.Header(),
		ShouldFallback: backend.FallbackUnlessUnauthorized,
	}, &resp)
	if err != nil {
		c.notify(errorToast("Could not claim ticket", claimErrorMessage(err)))
		return nil, fmt.Errorf("failed to claim free ticket: %w", err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "The ticket could not be claimed."
		}
		c.notify(errorToast("Could not claim ticket", msg))
		return nil, fmt.Errorf("failed to claim free ticket: %s", msg)
	}

	c.log.WithFields(logrus.Fields{
		"event_id":  checkout.EventID,
		"ticket_id": checkout.TicketID,
		"user_id":   user.ID,
		"path":      result.Path,
	}).Info("free ticket claimed")

	msg := resp.Message
	if msg == "" {
		msg = "Your free ticket has been claimed."
	}
	c.notify(models.Toast{Title: "Ticket claimed", Description: msg})

	successURL := c.baseURL + c.successPath
	if q := checkout.SuccessQuery().Encode(); q != "" {
		successURL += "?" + q
	}
	return &ClaimOutcome{Message: msg, SuccessURL: successURL, NavigateAfter: c.navDelay}, nil
}

func (c *FreeTicketClaimer) notify(t models.Toast) {
	if c.notifier != nil {
		c.notifier.Notify(t)
	}
}

func claimErrorMessage(err error) string {
	var se *backend.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, models.ErrUnauthorized) {
		return "Please sign in to claim this ticket."
	}
	return "Something went wrong. Please try again."
}
