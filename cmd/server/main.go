package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sg-checkout/internal/backend"
	"sg-checkout/internal/checkout"
	"sg-checkout/internal/config"
	"sg-checkout/internal/database"
	"sg-checkout/internal/events"
	"sg-checkout/internal/handlers"
	"sg-checkout/internal/logger"
	"sg-checkout/internal/middleware"
	"sg-checkout/internal/repositories"
	"sg-checkout/internal/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env)

	// Initialize database connection
	dbConfig := database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}

	db, err := database.NewConnection(dbConfig, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db.DB)
	ticketRepo := repositories.NewTicketRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)

	// Initialize services
	userService := services.NewUserService(userRepo)
	intentCreator := services.NewStripeIntentCreator(cfg.Stripe.SecretKey, nil)
	paymentService := services.NewPaymentService(intentCreator, orderRepo, userRepo, cfg.Stripe.WebhookSecret, log)
	freeTicketService := services.NewFreeTicketService(ticketRepo, log)

	// Sessions
	sessionStore := middleware.NewCookieStore(cfg.Session.Secret, cfg.Session.MaxAge, cfg.IsProduction())
	authMiddleware := middleware.NewAuthMiddleware(userService, sessionStore, log)
	sessionMiddleware := middleware.NewSessionMiddleware(sessionStore, log)

	// Checkout flow
	bus := events.NewBus()
	bus.SubscribeOpenAuthModal(func(ev events.OpenAuthModal) {
		log.WithFields(logrus.Fields{"session_id": ev.SessionID, "tab": ev.Tab}).Debug("auth modal requested")
	})
	registry := checkout.NewRegistry(checkoutConfig(cfg), checkout.Deps{
		API: backend.NewClient(backend.Config{
			BaseURL: cfg.Checkout.BackendURL,
			Timeout: cfg.Checkout.RequestTimeout,
		}, log),
		Confirmer: checkout.NewStripeConfirmer(cfg.Stripe.SecretKey, nil, log),
		Bus:       bus,
		Log:       log,
	}, cfg.Checkout.SessionTTL)
	go registry.Run(ctx, time.Minute)

	limiter := middleware.NewRateLimiter(10, time.Minute)
	go limiter.Run(ctx, 5*time.Minute)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(paymentService, freeTicketService, log)
	checkoutHandler := handlers.NewCheckoutHandler(registry, cfg.Stripe.PublishableKey, cfg.CashApp.Tag, log)
	sessionHandler := handlers.NewSessionHandler(userService, authMiddleware, !cfg.IsProduction(), log)

	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(authMiddleware.LoadUser)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorHandlingMiddleware(log))
	r.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.Server.BaseURL)))
	r.Use(middleware.SecureHeaders)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.NotFound(middleware.NotFoundHandler().ServeHTTP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Provider callbacks carry no browser session
	r.Post("/api/payment/webhook", apiHandler.StripeWebhook)

	// The checkout flow tries the prefixed path first, then the alias
	for _, prefix := range []string{"/api", ""} {
		r.Get(prefix+"/me", apiHandler.Me)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RateLimit(limiter))
			r.Post(prefix+"/payment/create-intent", apiHandler.CreateIntent)
			r.Post(prefix+"/tickets/free", apiHandler.ClaimFreeTicket)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware.CheckoutSession)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.Page)
			r.Get("/branch", checkoutHandler.Branch)
			r.Get("/payment", checkoutHandler.Payment)
			r.Post("/intent/retry", checkoutHandler.RetryIntent)
			r.Get("/form/state", checkoutHandler.FormState)
			r.Post("/form/sdk-loaded", checkoutHandler.SDKLoaded)
			r.Post("/form/element-ready", checkoutHandler.ElementReady)
			r.Post("/form/element-change", checkoutHandler.ElementChange)
			r.Post("/confirm", checkoutHandler.Confirm)
			r.Post("/claim", checkoutHandler.ClaimFree)
			r.Post("/auth/{tab}", checkoutHandler.AuthRedirect)
			r.Get("/cashapp/qr", checkoutHandler.CashAppQR)
		})
		r.Get("/payment-success", checkoutHandler.PaymentSuccess)
	})

	r.Get("/login", sessionHandler.LoginPage)
	r.Post("/dev/login", sessionHandler.DevLogin)
	r.Post("/logout", sessionHandler.Logout)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "env": cfg.Server.Env}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

func checkoutConfig(cfg *config.Config) checkout.Config {
	c := checkout.DefaultConfig()
	c.Endpoints = checkout.Endpoints{
		Me:           cfg.Checkout.MeEndpoints,
		CreateIntent: cfg.Checkout.IntentEndpoints,
		FreeTicket:   cfg.Checkout.FreeTicketEndpoints,
	}
	c.Form.GraceDelay = cfg.Checkout.ReadyGraceDelay
	c.Form.SlowLoadWarning = cfg.Checkout.SlowLoadWarning
	c.Form.BaseURL = cfg.Server.BaseURL
	c.FreeTicketNavigateDelay = cfg.Checkout.FreeTicketNavDelay
	c.CashAppTag = cfg.CashApp.Tag
	c.PayPalClientID = cfg.PayPal.ClientID
	return c
}
