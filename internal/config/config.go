package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration values
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The types reflect how the values are used
// in the application: strings for identifiers and secrets, ints for
// counts and durations.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AdminPassword     string // shared admin secret (plain, optional when hash set)
	AdminPasswordHash string // bcrypt hash of the admin secret (preferred)
	JWTSecret         string // secret used to sign admin session tokens
	AdminTokenTTLMin  int    // admin token time-to-live in minutes

	EventName  string // event display name used in mail, QR and exports
	EventDate  string // human-readable event date
	EventVenue string // venue line printed on tickets

	SeatRows    int    // number of seat rows in the grid
	SeatsPerRow int    // seats per row
	BlockedRows int    // leading rows excluded from booking
	RefPrefix   string // booking reference prefix
	BookingFlow string // "verify" (default) or "direct"

	SMTPHost    string        // SMTP server host
	SMTPPort    int           // SMTP server port
	SMTPUser    string        // SMTP username
	SMTPPass    string        // SMTP password
	MailFrom    string        // From address for outgoing mail
	MailTimeout time.Duration // upper bound on one SMTP exchange

	CSVExportPath string // path of the append-only booking export
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.  Event and
// grid settings have defaults so a development instance starts without
// a full environment file.
func Load() Config {
	cfg := Config{
		Env:  must("APP_ENV"),  // environment (dev/test/prod)
		Port: must("APP_PORT"), // port to bind the HTTP server

		DBUser: must("DB_USER"),      // database user
		DBPass: os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost: must("DB_HOST"),      // database host
		DBPort: must("DB_PORT"),      // database port
		DBName: must("DB_NAME"),      // database name

		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),      // plain shared secret
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"), // bcrypt hash, takes precedence
		JWTSecret:         must("JWT_SECRET"),               // secret for admin session tokens
		AdminTokenTTLMin:  envInt("ADMIN_TOKEN_TTL_MIN", 60),

		EventName:  envStr("EVENT_NAME", "Rupaay Fest"),
		EventDate:  envStr("EVENT_DATE", "January 7, 2026"),
		EventVenue: envStr("EVENT_VENUE", "Auditorium, Gitam University BLR"),

		SeatRows:    envInt("SEAT_ROWS", 8),
		SeatsPerRow: envInt("SEATS_PER_ROW", 12),
		BlockedRows: envInt("BLOCKED_ROWS", 2),
		RefPrefix:   envStr("REF_PREFIX", "RUPAAYFEST"),
		BookingFlow: envStr("BOOKING_FLOW", "verify"),

		SMTPHost:    os.Getenv("SMTP_HOST"),
		SMTPPort:    envInt("SMTP_PORT", 587),
		SMTPUser:    os.Getenv("SMTP_USER"),
		SMTPPass:    os.Getenv("SMTP_PASS"),
		MailFrom:    envStr("MAIL_FROM", os.Getenv("SMTP_USER")),
		MailTimeout: envDur("MAIL_TIMEOUT", 15*time.Second),

		CSVExportPath: envStr("CSV_EXPORT_PATH", "bookings-export.csv"),
	}
	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		log.Fatal("either ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envStr returns the variable's value or the given default.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns the variable parsed as an integer or the default.  An
// unparseable value is fatal rather than silently ignored.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// envDur returns the variable parsed as a duration or the default.
func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
