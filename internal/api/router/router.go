package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/audit"
	"github.com/erdincayar/klinik-asistan-sub000/internal/clinic"
	"github.com/erdincayar/klinik-asistan-sub000/internal/conversation"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	httpmiddleware "github.com/erdincayar/klinik-asistan-sub000/internal/http/middleware"
	"github.com/erdincayar/klinik-asistan-sub000/internal/inventory"
	"github.com/erdincayar/klinik-asistan-sub000/internal/messaging"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/internal/reminders"
	"github.com/erdincayar/klinik-asistan-sub000/internal/tenancy"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Config holds router configuration. Nil handlers are not mounted.
type Config struct {
	Logger             *logging.Logger
	Assistant          *conversation.Handler
	Appointments       *appointments.Handler
	Patients           *patients.Handler
	Finance            *finance.Handler
	Inventory          *inventory.Handler
	Reminders          *reminders.Handler
	Clinic             *clinic.Handler
	Audit              *audit.Handler
	TelegramWebhook    *messaging.WebhookHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.TelegramWebhook != nil {
			public.Post("/webhooks/telegram", cfg.TelegramWebhook.Telegram)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Tenant-scoped API routes. With an admin secret configured every call
	// needs a bearer token; the token's clinic_id claim wins over the header.
	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		if cfg.AdminAuthSecret != "" {
			api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		}
		api.Use(tenancy.RequireClinic)

		if cfg.Assistant != nil {
			api.Route("/assistant", cfg.Assistant.RegisterRoutes)
		}
		if cfg.Appointments != nil {
			api.Route("/appointments", cfg.Appointments.RegisterRoutes)
			api.Route("/schedule", cfg.Appointments.RegisterScheduleRoutes)
		}
		if cfg.Patients != nil {
			api.Route("/patients", cfg.Patients.RegisterRoutes)
		}
		if cfg.Finance != nil {
			api.Group(cfg.Finance.RegisterRoutes)
		}
		if cfg.Inventory != nil {
			api.Route("/products", cfg.Inventory.RegisterRoutes)
		}
		if cfg.Reminders != nil {
			api.Route("/reminders", cfg.Reminders.RegisterRoutes)
		}
		if cfg.Clinic != nil {
			api.Route("/clinic", cfg.Clinic.RegisterRoutes)
		}
		if cfg.Audit != nil {
			api.Route("/audit", cfg.Audit.RegisterRoutes)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
