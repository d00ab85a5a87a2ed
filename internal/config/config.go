// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration. Each field corresponds to
// an environment variable; required ones are enforced by must() and
// abort startup when missing.
type Config struct {
	Env            string
	Port           string
	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	Currency string // ISO 4217 code all orders are charged in

	PaymentBaseURL       string
	PaymentAPIKey        string
	PaymentSigningKey    string
	PaymentWebhookSecret string

	EmailBaseURL string
	EmailAPIKey  string
	EmailFrom    string

	RepairInterval time.Duration // issuance repair pass period
}

// Load reads configuration from the environment. Missing required
// variables cause a fatal log and exit.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		Currency: getenv("CURRENCY", "USD"),

		PaymentBaseURL:       must("PAYMENT_BASE_URL"),
		PaymentAPIKey:        must("PAYMENT_API_KEY"),
		PaymentSigningKey:    must("PAYMENT_SIGNING_KEY"),
		PaymentWebhookSecret: must("PAYMENT_WEBHOOK_SECRET"),

		EmailBaseURL: must("EMAIL_BASE_URL"),
		EmailAPIKey:  must("EMAIL_API_KEY"),
		EmailFrom:    getenv("EMAIL_FROM", "tickets@ticketpro.zw"),

		RepairInterval: parseDur(getenv("ISSUANCE_REPAIR_INTERVAL", "5m")),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is must() with integer conversion.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
