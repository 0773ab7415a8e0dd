package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Required values come
// from must/mustInt, optional ones fall back to defaults.
type Config struct {
	Env            string // application environment (dev, test, prod)
	Port           string // HTTP port to listen on
	DBUser         string
	DBPass         string // may be empty
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int // access token lifetime in minutes
	RefreshTTLDays int // refresh token lifetime in days
	BcryptCost     int

	LogLevel  string
	LogFormat string // "json" or "text"

	AMQPURL     string // empty disables publishing and the event log consumer
	EventLog    string // file the consumer appends admission events to
	UploadDir   string
	LetterDir   string // relative to UploadDir
	LetterCron  string // cron spec with seconds; empty disables the letter job
	CleanupCron string // expired refresh token sweep

	PaymentSecret       string
	SelectionMaxRetries int
	AutoMigrate         bool

	AdminEmail    string // seeded when no admin exists
	AdminPassword string
}

// Load reads configuration values from environment variables.
// Missing required variables stop the program.
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

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		AMQPURL:     amqpURL(),
		EventLog:    envStr("EVENT_LOG_PATH", "logs/admission.log"),
		UploadDir:   envStr("UPLOAD_DIR", "uploads"),
		LetterDir:   envStr("LETTER_DIR", "admission_letters"),
		LetterCron:  os.Getenv("LETTER_CRON"),
		CleanupCron: envStr("TOKEN_CLEANUP_CRON", "0 0 3 * * *"),

		PaymentSecret:       os.Getenv("PAYMENT_SECRET"),
		SelectionMaxRetries: envInt("SELECTION_MAX_RETRIES", 3),
		AutoMigrate:         envBool("AUTO_MIGRATE", true),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
}

// AccessTTL and RefreshTTL convert the configured lifetimes.
func (c Config) AccessTTL() time.Duration  { return time.Duration(c.AccessTTLMin) * time.Minute }
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLDays) * 24 * time.Hour }

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
