// Command checkout-probe drives the checkout flow against a running backend
// from a terminal: it resolves the session user, requests a payment intent
// and prints the Cash App link as a QR code.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/checkout"
	"sg-checkout/internal/config"
	"sg-checkout/internal/events"
	"sg-checkout/internal/logger"
	"sg-checkout/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var (
		backendURL = flag.String("backend", cfg.Checkout.BackendURL, "Backend base URL")
		amount     = flag.String("amount", "25.00", "Ticket amount in currency units")
		currency   = flag.String("currency", models.DefaultCurrency, "ISO currency code")
		eventID    = flag.Int("event", 0, "Event id")
		title      = flag.String("title", "", "Event title")
		ticketID   = flag.Int("ticket", 0, "Ticket type id")
		ticketName = flag.String("ticket-name", "", "Ticket name")
		cookie     = flag.String("cookie", "", "Cookie header to send, e.g. session=...")
		token      = flag.String("token", "", "Bearer token to send")
		cashTag    = flag.String("cashtag", cfg.CashApp.Tag, "Cash App tag for the payment link")
		timeout    = flag.Duration("timeout", cfg.Checkout.RequestTimeout, "Overall timeout")
	)
	flag.Parse()

	log := logger.New(cfg.Server.Env)

	q := url.Values{}
	q.Set("amount", *amount)
	q.Set("currency", *currency)
	q.Set("title", *title)
	q.Set("ticketName", *ticketName)
	if *eventID > 0 {
		q.Set("eventId", strconv.Itoa(*eventID))
	}
	if *ticketID > 0 {
		q.Set("ticketId", strconv.Itoa(*ticketID))
	}
	ctx := models.ParseCheckoutContext(q)

	header := http.Header{}
	if *cookie != "" {
		header.Set("Cookie", *cookie)
	}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	ccfg := checkout.DefaultConfig()
	ccfg.Endpoints = checkout.Endpoints{
		Me:           cfg.Checkout.MeEndpoints,
		CreateIntent: cfg.Checkout.IntentEndpoints,
		FreeTicket:   cfg.Checkout.FreeTicketEndpoints,
	}
	ccfg.CashAppTag = *cashTag

	ctrl := checkout.NewController(uuid.NewString(), checkout.NewCredentials(header), ccfg, checkout.Deps{
		API: backend.NewClient(backend.Config{BaseURL: *backendURL, Timeout: cfg.Checkout.RequestTimeout}, log),
		Bus: events.NewBus(),
		Log: log,
	})
	defer ctrl.Close()

	runCtx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ctrl.Navigate(ctx)
	ctrl.Start(runCtx)

	view := ctrl.View()
	fields := logrus.Fields{"branch": view.Branch, "amount": ctx.DisplayAmount()}
	if view.User != nil {
		fields["user"] = view.User.Email
	}
	log.WithFields(fields).Info("checkout resolved")

	switch view.Branch {
	case models.BranchAuthRequired:
		fmt.Println("Sign in required:", ctrl.AuthRedirect(events.TabSignIn))
		os.Exit(2)
	case models.BranchFreeTicket:
		fmt.Println("Free ticket; claim it from the checkout page:", view.CheckoutURL)
		return
	}

	start := time.Now()
	handle, err := ctrl.EnsureIntent(runCtx)
	if err != nil {
		log.WithError(err).Error("payment intent failed")
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{
		"intent_id":  handle.IntentID(),
		"request_id": handle.RequestID,
		"took":       time.Since(start).Round(time.Millisecond),
	}).Info("payment intent ready")

	link := checkout.CashAppLink(*cashTag, ctx)
	if link == "" {
		return
	}
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		log.WithError(err).Error("failed to encode Cash App link")
		os.Exit(1)
	}
	fmt.Println(link)
	fmt.Println(qr.ToSmallString(false))
}
