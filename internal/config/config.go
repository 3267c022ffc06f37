package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in the
// application: strings for identifiers and secrets, ints for durations and
// costs. The struct is built once in main and passed by reference into the
// components that need it; there are no ambient globals.
type Config struct {
	Env                 string // application environment (e.g. "dev", "prod")
	Port                string // HTTP port to listen on
	DatabaseDSN         string // MySQL connection string
	JWTSecret           string // secret used to sign JWTs
	JWTAlgorithm        string // HMAC signing algorithm (HS256/HS384/HS512)
	AccessTTLMin        int    // access token time-to-live in minutes
	RefreshTTLDays      int    // refresh token time-to-live in days
	BcryptCost          int    // bcrypt cost for password hashing
	StripeAPIKey        string // payment provider API key
	StripePriceID       string // fixed recurring price identifier
	StripeWebhookSecret string // secret used to verify webhook signatures
	PublicBaseURL       string // public base URL used for checkout/portal redirects
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:                 must("APP_ENV"),
		Port:                must("APP_PORT"),
		DatabaseDSN:         must("DATABASE_DSN"),
		JWTSecret:           must("JWT_SECRET"),
		JWTAlgorithm:        envStr("JWT_ALGORITHM", "HS256"),
		AccessTTLMin:        mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:      mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:          mustInt("BCRYPT_COST"),
		StripeAPIKey:        must("STRIPE_API_KEY"),
		StripePriceID:       must("STRIPE_PRICE_ID"),
		StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
		PublicBaseURL:       envStr("PUBLIC_BASE_URL", "http://localhost:8000"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
