package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/eventhub/eventhub/internal/auth"
	"github.com/eventhub/eventhub/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Deps is everything the router needs to serve the API.
type Deps struct {
	Events        *service.EventService
	Registrations *service.RegistrationService
	Accounts      *service.AccountService

	Tokens *auth.TokenIssuer
	Users  auth.UserLookup

	Log logrus.FieldLogger

	// Redis backs the registration quota. Nil disables it.
	Redis       *redis.Client
	Quota       int
	QuotaWindow time.Duration

	RateLimit     LimiterConfig
	AuthRateLimit LimiterConfig
	CORSOrigins   []string
}

// NewRouter builds the HTTP API. ctx bounds background work such as rate
// limiter sweeps.
func NewRouter(ctx context.Context, d Deps) http.Handler {
	events := NewEventHandler(d.Events, d.Log)
	registrations := NewRegistrationHandler(d.Registrations, d.Log)
	accounts := NewAccountHandler(d.Accounts, d.Tokens.TTL(), d.Log)

	limiter := NewRateLimiter(ctx, d.RateLimit)
	authLimiter := NewRateLimiter(ctx, d.AuthRateLimit)
	quota := Quota(d.Redis, QuotaRule{
		Limit:  d.Quota,
		Window: d.QuotaWindow,
		KeyFn:  registrationQuotaKey,
	}, d.Log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(d.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(d.CORSOrigins))

	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(auth.Session(d.Tokens, d.Users, d.Log))

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter.Middleware).Post("/signup", accounts.SignUp)
			r.With(authLimiter.Middleware).Post("/login", accounts.Login)
			r.Post("/logout", accounts.Logout)
			r.With(auth.RequireActor).Get("/me", accounts.Me)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", events.ListEvents)
			r.Get("/{id}", events.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireActor)

				r.Post("/", events.CreateEvent)
				r.Patch("/{id}", events.UpdateEvent)
				r.Delete("/{id}", events.DeleteEvent)

				r.With(quota).Post("/{id}/register", registrations.Register)
				r.Delete("/{id}/register", registrations.Unregister)

				r.Get("/{id}/participants", registrations.ListParticipants)
				r.With(quota).Post("/{id}/participants", registrations.AddParticipant)
				r.Delete("/{id}/participants/{userId}", registrations.RemoveParticipant)
				r.Get("/{id}/available-users", registrations.AvailableUsers)
			})
		})

		r.Route("/my", func(r chi.Router) {
			r.Use(auth.RequireActor)
			r.Get("/events", events.MyEvents)
			r.Get("/registrations", registrations.MyRegistrations)
		})

		r.With(auth.RequireActor).Put("/users/{id}/roles", accounts.SetRoles)
	})

	return r
}

// registrationQuotaKey buckets registration attempts per actor.
func registrationQuotaKey(r *http.Request) string {
	actor := auth.ActorFrom(r.Context())
	if actor == nil {
		return ""
	}
	return "quota:registrations:" + actor.ID
}
