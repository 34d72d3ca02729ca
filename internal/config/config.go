// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const minJWTSecretLen = 32

// bcrypt accepts at most 72 bytes of password.
const maxPasswordBytes = 72

// Config holds every setting the service reads at startup.
type Config struct {
	Port  string
	Store string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	JWTSecret string
	JWTTTL    time.Duration

	// BootstrapAdminEmail, when set, is ensured to exist with the admin role
	// at startup.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	// RegistrationLockTimeout bounds how long a registration waits for the
	// per-event critical section.
	RegistrationLockTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RegistrationQuota       int
	RegistrationQuotaWindow time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present and then the process environment.
// Malformed numeric or duration values fall back to defaults; Validate
// catches settings that cannot be defaulted.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:  getEnv("PORT", "8080"),
		Store: strings.ToLower(getEnv("STORE", StorePostgres)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "eventhub"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getDuration("JWT_TTL", 7*24*time.Hour),

		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		RegistrationLockTimeout: getDuration("REGISTRATION_LOCK_TIMEOUT", 5*time.Second),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		RegistrationQuota:       getInt("REGISTRATION_QUOTA", 200),
		RegistrationQuotaWindow: getDuration("REGISTRATION_QUOTA_WINDOW", 24*time.Hour),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// DSN returns DATABASE_URL when set, otherwise a libpq keyword string built
// from the DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// Validate reports every setting that would prevent the service from
// starting correctly.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.BootstrapAdminEmail != "" {
		if n := len(c.BootstrapAdminPassword); n < 8 || n > maxPasswordBytes {
			errs = append(errs, fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be 8 to %d bytes", maxPasswordBytes))
		}
	}
	if c.RegistrationLockTimeout <= 0 {
		errs = append(errs, errors.New("REGISTRATION_LOCK_TIMEOUT must be positive"))
	}
	if c.RegistrationQuota < 0 {
		errs = append(errs, errors.New("REGISTRATION_QUOTA cannot be negative"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
