package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE", "")
	t.Setenv("REGISTRATION_LOCK_TIMEOUT", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Store != StorePostgres {
		t.Errorf("Store = %q, want %q", cfg.Store, StorePostgres)
	}
	if cfg.RegistrationLockTimeout != 5*time.Second {
		t.Errorf("RegistrationLockTimeout = %v, want 5s", cfg.RegistrationLockTimeout)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "Memory")
	t.Setenv("REGISTRATION_LOCK_TIMEOUT", "250ms")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()
	if cfg.Store != StoreMemory {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreMemory)
	}
	if cfg.RegistrationLockTimeout != 250*time.Millisecond {
		t.Errorf("RegistrationLockTimeout = %v", cfg.RegistrationLockTimeout)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v, want 2.5", cfg.RateLimitRPS)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5433", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable"}
	if got := cfg.DSN(); got != "host=db port=5433 user=u password=p dbname=n sslmode=disable" {
		t.Errorf("DSN() = %q", got)
	}

	cfg.DatabaseURL = "postgres://x@y/z"
	if got := cfg.DSN(); got != "postgres://x@y/z" {
		t.Errorf("DSN() with DATABASE_URL = %q", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:                   StoreMemory,
			JWTSecret:               strings.Repeat("s", 32),
			JWTTTL:                  time.Hour,
			RegistrationLockTimeout: time.Second,
			RateLimitRPS:            1,
			RateLimitBurst:          1,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown store", func(c *Config) { c.Store = "mysql" }, "STORE"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"zero lock timeout", func(c *Config) { c.RegistrationLockTimeout = 0 }, "REGISTRATION_LOCK_TIMEOUT"},
		{"negative quota", func(c *Config) { c.RegistrationQuota = -1 }, "REGISTRATION_QUOTA"},
		{"zero burst", func(c *Config) { c.RateLimitBurst = 0 }, "RATE_LIMIT"},
		{"admin without password", func(c *Config) { c.BootstrapAdminEmail = "root@example.com" }, "BOOTSTRAP_ADMIN_PASSWORD"},
		{"admin password over bcrypt limit", func(c *Config) {
			c.BootstrapAdminEmail = "root@example.com"
			c.BootstrapAdminPassword = strings.Repeat("p", 73)
		}, "BOOTSTRAP_ADMIN_PASSWORD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}
