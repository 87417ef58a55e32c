package config // package config loads application configuration from environment variables

import (
	"log"      // log is used to report configuration errors and halt execution
	"net/http" // http provides the SameSite constants used for the refresh cookie
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
	"time"     // time represents parsed token lifetimes
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Token secrets and lifetimes are validated
// eagerly here: a missing secret or a malformed expiry literal aborts the
// process at startup instead of failing lazily on the first request.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AccessSecret  string // secret used to sign access tokens
	RefreshSecret string // secret used to sign refresh tokens; independent from the access secret
	// Password-reset and email-verification tokens reuse the access secret
	// unless their own variables are set.
	ResetSecret  string
	VerifySecret string

	AccessTokenTTL  time.Duration // access token lifetime (short)
	RefreshTokenTTL time.Duration // refresh token lifetime (long)
	ResetTokenTTL   time.Duration // password-reset token lifetime
	VerifyTokenTTL  time.Duration // email-verification token lifetime

	BcryptCost    int // bcrypt cost factor, bounded to 10..15
	RefreshDBDays int // ledger expiry for refresh tokens in days, bounded to 1..30

	CookieSameSite   http.SameSite // SameSite policy for the refresh cookie
	CookieMaxAgeDays int           // refresh cookie lifetime in days; mirrors RefreshDBDays

	CORSOrigin  string        // allowed CORS origin for browser clients
	PhoneOTPTTL time.Duration // lifetime of one-time phone verification codes
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing or invalid
// values cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:    must("APP_ENV"),      // environment (dev/test/prod)
		Port:   must("APP_PORT"),     // port to bind the HTTP server
		DBUser: must("DB_USER"),      // database user
		DBPass: os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost: must("DB_HOST"),      // database host
		DBPort: must("DB_PORT"),      // database port
		DBName: must("DB_NAME"),      // database name

		AccessSecret:  must("JWT_ACCESS_SECRET"),  // access token signing secret
		RefreshSecret: must("JWT_REFRESH_SECRET"), // refresh token signing secret

		AccessTokenTTL:  mustExpiry("JWT_ACCESS_EXPIRES_IN", "15m"),
		RefreshTokenTTL: mustExpiry("JWT_REFRESH_EXPIRES_IN", "7d"),
		ResetTokenTTL:   mustExpiry("JWT_PASSWORD_RESET_EXPIRES_IN", "1h"),
		VerifyTokenTTL:  mustExpiry("JWT_EMAIL_VERIFICATION_EXPIRES_IN", "24h"),

		BcryptCost:    mustIntRange("BCRYPT_COST", 12, 10, 15),
		RefreshDBDays: mustIntRange("REFRESH_TOKEN_DB_EXPIRES_DAYS", 7, 1, 30),

		CookieSameSite: mustSameSite("COOKIE_SAME_SITE", "lax"),

		CORSOrigin:  getenvDefault("CORS_ORIGIN", "*"),
		PhoneOTPTTL: mustExpiry("PHONE_OTP_EXPIRES_IN", "10m"),
	}

	// Reset and verification tokens fall back to the access secret.  The
	// embedded type claim keeps the purposes apart even with a shared key.
	cfg.ResetSecret = getenvDefault("JWT_PASSWORD_RESET_SECRET", cfg.AccessSecret)
	cfg.VerifySecret = getenvDefault("JWT_EMAIL_VERIFICATION_SECRET", cfg.AccessSecret)

	// The refresh cookie must not outlive the ledger row, so its default
	// mirrors the ledger expiry.
	cfg.CookieMaxAgeDays = mustIntRange("COOKIE_MAX_AGE_DAYS", cfg.RefreshDBDays, 1, 30)

	return cfg
}

// Dev reports whether the application runs in development mode.  Error
// responses include internal details only when this is true.
func (c Config) Dev() bool { return c.Env == "dev" || c.Env == "development" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustIntRange reads an optional integer variable with a default and
// enforces an inclusive range.  Out-of-range values are a configuration
// error, not something to silently clamp.
func mustIntRange(key string, def, min, max int) int {
	s := os.Getenv(key)
	n := def
	if s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil {
			log.Fatalf("invalid int for %s: %q", key, s)
		}
	}
	if n < min || n > max {
		log.Fatalf("%s must be between %d and %d, got %d", key, min, max, n)
	}
	return n
}

// mustExpiry reads a duration literal such as "15m", "7d" or "1h" and
// converts it to a time.Duration.  An unrecognized unit is fatal.
func mustExpiry(key, def string) time.Duration {
	s := getenvDefault(key, def)
	d, err := ParseExpiry(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %v", key, err)
	}
	return d
}

// ParseExpiry parses an expiry literal of the form <integer><unit> where
// unit is one of s, m, h or d.  The day unit is why time.ParseDuration is
// not used directly.
func ParseExpiry(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, &ExpiryError{Literal: s}
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, &ExpiryError{Literal: s}
	}
	switch s[len(s)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, &ExpiryError{Literal: s}
	}
}

// ExpiryError reports a malformed expiry literal.
type ExpiryError struct{ Literal string }

func (e *ExpiryError) Error() string {
	return "expiry literal must be <integer><s|m|h|d>, got " + strconv.Quote(e.Literal)
}

// mustSameSite maps a textual cookie policy to the stdlib constant.  An
// unknown value is a configuration error.
func mustSameSite(key, def string) http.SameSite {
	switch getenvDefault(key, def) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		log.Fatalf("%s must be one of lax, strict, none", key)
		return http.SameSiteDefaultMode // unreachable
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
