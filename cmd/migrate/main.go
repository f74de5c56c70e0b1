package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"sg-checkout/internal/config"
	"sg-checkout/internal/database"
	"sg-checkout/internal/logger"
	"sg-checkout/internal/models"
	"sg-checkout/internal/repositories"

	"github.com/sirupsen/logrus"
)

// Demo data inserted by -seed. The event itself lives in the events service;
// only its id is referenced here.
const (
	seedEmail   = "demo@sgtickets.test"
	seedEventID = 1
)

func main() {
	var (
		statusFlag = flag.Bool("status", false, "Show migration status")
		upFlag     = flag.Bool("up", false, "Run pending migrations")
		seedFlag   = flag.Bool("seed", false, "Insert a demo user and ticket types")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env)

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

	switch {
	case *statusFlag:
		states, err := db.MigrationStatus()
		if err != nil {
			log.WithError(err).Fatal("Failed to get migration status")
		}
		for _, s := range states {
			mark := "pending"
			if s.Applied {
				mark = "applied"
			}
			fmt.Printf("%03d  %-40s %s\n", s.Version, s.Name, mark)
		}
	case *upFlag:
		if err := db.RunMigrations(); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
		log.Info("All migrations completed successfully")
	case *seedFlag:
		if err := db.RunMigrations(); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
		if err := seed(db, log); err != nil {
			log.WithError(err).Fatal("Failed to seed data")
		}
	default:
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/migrate -status   # Show migration status")
		fmt.Println("  go run ./cmd/migrate -up       # Run pending migrations")
		fmt.Println("  go run ./cmd/migrate -seed     # Migrate and insert demo data")
		os.Exit(1)
	}
}

func seed(db *database.DB, log *logrus.Logger) error {
	userRepo := repositories.NewUserRepository(db.DB)
	ticketRepo := repositories.NewTicketRepository(db.DB)

	user, err := userRepo.GetByEmail(seedEmail)
	if errors.Is(err, models.ErrUserNotFound) {
		user, err = userRepo.Create(seedEmail, "Demo", "User", models.UserRoleUser)
	}
	if err != nil {
		return fmt.Errorf("demo user: %w", err)
	}
	log.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("demo user ready")

	ticketTypes := []*models.TicketType{
		{EventID: seedEventID, Name: "General Admission", Price: 2500, Quantity: 200},
		{EventID: seedEventID, Name: "Community Pass", Price: 0, Quantity: 50},
	}
	for _, tt := range ticketTypes {
		if err := ticketRepo.CreateTicketType(tt); err != nil {
			return fmt.Errorf("ticket type %q: %w", tt.Name, err)
		}
		log.WithFields(logrus.Fields{
			"ticket_type_id": tt.ID,
			"name":           tt.Name,
			"checkout_url":   checkoutURL(tt),
		}).Info("ticket type created")
	}
	return nil
}

func checkoutURL(tt *models.TicketType) string {
	ctx := models.CheckoutContext{
		AmountCents: int64(tt.Price),
		Currency:    models.DefaultCurrency,
		EventID:     tt.EventID,
		EventTitle:  "Demo Night",
		TicketID:    tt.ID,
		TicketName:  tt.Name,
	}
	return "/checkout?" + ctx.Query().Encode()
}
