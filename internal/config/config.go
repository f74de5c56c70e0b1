package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Stripe   StripeConfig
	PayPal   PayPalConfig
	CashApp  CashAppConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port    string
	Host    string
	Env     string
	BaseURL string // public origin used in return and success URLs
}

type DatabaseConfig struct {
	URL      string // Full database URL
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SessionConfig struct {
	Secret string
	MaxAge int
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

type PayPalConfig struct {
	ClientID string
}

type CashAppConfig struct {
	Tag string
}

// CheckoutConfig configures the checkout flow's calls to the backend API
type CheckoutConfig struct {
	BackendURL          string
	MeEndpoints         []string
	IntentEndpoints     []string
	FreeTicketEndpoints []string
	RequestTimeout      time.Duration
	ReadyGraceDelay     time.Duration
	SlowLoadWarning     time.Duration
	FreeTicketNavDelay  time.Duration
	SessionTTL          time.Duration
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	port := getEnv("PORT", "8080")
	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/")

	config := &Config{
		Server: ServerConfig{
			Port:    port,
			Host:    getEnv("HOST", "localhost"),
			Env:     getEnv("ENV", "development"),
			BaseURL: baseURL,
		},
		Database: parseDatabaseConfig(),
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
			MaxAge: getEnvAsInt("SESSION_MAX_AGE", 86400*7),
		},
		Stripe: StripeConfig{
			SecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			PublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			WebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		PayPal: PayPalConfig{
			ClientID: getEnv("PAYPAL_CLIENT_ID", ""),
		},
		CashApp: CashAppConfig{
			Tag: getEnv("CASHAPP_TAG", ""),
		},
		Checkout: CheckoutConfig{
			// the checkout flow talks to this server's own API unless pointed elsewhere
			BackendURL:          strings.TrimRight(getEnv("BACKEND_URL", baseURL), "/"),
			MeEndpoints:         getEnvAsList("ME_ENDPOINTS", []string{"/api/me", "/me"}),
			IntentEndpoints:     getEnvAsList("INTENT_ENDPOINTS", []string{"/api/payment/create-intent", "/payment/create-intent"}),
			FreeTicketEndpoints: getEnvAsList("FREE_TICKET_ENDPOINTS", []string{"/api/tickets/free", "/tickets/free"}),
			RequestTimeout:      getEnvAsDuration("BACKEND_TIMEOUT", 30*time.Second),
			ReadyGraceDelay:     getEnvAsDuration("READY_GRACE_DELAY", time.Second),
			SlowLoadWarning:     getEnvAsDuration("SLOW_LOAD_WARNING", 5*time.Second),
			FreeTicketNavDelay:  getEnvAsDuration("FREE_TICKET_NAV_DELAY", 1500*time.Millisecond),
			SessionTTL:          getEnvAsDuration("CHECKOUT_SESSION_TTL", 30*time.Minute),
		},
	}

	return config, nil
}

// IsProduction reports whether the server runs with ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func parseDatabaseConfig() DatabaseConfig {
	// Check if DATABASE_URL is provided
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL != "" {
		return parseDatabaseURL(databaseURL)
	}

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "sg_checkout"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		URL: databaseURL,
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		// If parsing fails, return the URL as-is
		return config
	}

	config.Host = u.Hostname()
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	} else {
		config.Port = 5432
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	config.DBName = strings.TrimPrefix(u.Path, "/")

	config.SSLMode = u.Query().Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1.5s") or plain milliseconds ("1500")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
