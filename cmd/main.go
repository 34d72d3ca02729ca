// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/eventhub/eventhub/internal/auth"
	"github.com/eventhub/eventhub/internal/config"
	"github.com/eventhub/eventhub/internal/database"
	"github.com/eventhub/eventhub/internal/handler"
	"github.com/eventhub/eventhub/internal/repository"
	"github.com/eventhub/eventhub/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type stores struct {
	events        service.EventStore
	registrations service.RegistrationStore
	users         service.UserStore
	close         func()
}

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ───────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("storage")
	}
	defer st.close()

	rdb := openRedis(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	events := service.NewEventService(st.events, st.registrations)
	registrations := service.NewRegistrationService(st.events, st.registrations, st.users)
	accounts := service.NewAccountService(st.users, tokens)

	if cfg.BootstrapAdminEmail != "" {
		admin, err := accounts.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			log.WithError(err).Fatal("bootstrap admin")
		}
		log.WithField("user_id", admin.ID).Info("bootstrap admin ready")
	}

	// ── 3. Build the router ──────────────────────────────────────────────
	router := handler.NewRouter(ctx, handler.Deps{
		Events:        events,
		Registrations: registrations,
		Accounts:      accounts,
		Tokens:        tokens,
		Users:         st.users,
		Log:           log,
		Redis:         rdb,
		Quota:         cfg.RegistrationQuota,
		QuotaWindow:   cfg.RegistrationQuotaWindow,
		RateLimit: handler.LimiterConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		AuthRateLimit: handler.LimiterConfig{
			RPS:   cfg.RateLimitRPS / 10,
			Burst: max(cfg.RateLimitBurst/10, 1),
		},
		CORSOrigins: cfg.CORSOrigins,
	})

	// ── 4. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.Store}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		log.WithError(err).Error("server error")
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		return
	}
	log.Info("server stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func openStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store: data is lost on restart and capacity is only guarded within this process")
		mem := repository.NewMemoryStore(cfg.RegistrationLockTimeout)
		return &stores{
			events:        mem.Events(),
			registrations: mem.Registrations(),
			users:         mem.Users(),
			close:         func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.DSN(), log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("connected to PostgreSQL")

	return &stores{
		events:        repository.NewEventRepository(pool, cfg.RegistrationLockTimeout),
		registrations: repository.NewRegistrationRepository(pool, cfg.RegistrationLockTimeout),
		users:         repository.NewUserRepository(pool),
		close:         pool.Close,
	}, nil
}

// openRedis returns nil when no address is configured or the server does
// not answer; the registration quota is then disabled.
func openRedis(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) *redis.Client {
	if cfg.RedisAddr == "" || cfg.RegistrationQuota == 0 {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, registration quota disabled")
		_ = rdb.Close()
		return nil
	}
	log.WithField("addr", cfg.RedisAddr).Info("connected to Redis")
	return rdb
}
