package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mesavia/restaurant-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/mesavia/restaurant-ai-platform/internal/http/middleware"
	"github.com/mesavia/restaurant-ai-platform/internal/messaging"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	WebhookHandler  *messaging.WebhookHandler
	AdminCatalog    *handlers.AdminCatalogHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	// WebhookRate limits inbound webhook requests per second per IP.
	// Zero disables the limiter.
	WebhookRate  float64
	WebhookBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WebhookHandler != nil {
			public.Route("/webhooks/whatsapp", func(wh chi.Router) {
				if cfg.WebhookRate > 0 {
					wh.Use(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
				}
				wh.Post("/", cfg.WebhookHandler.HandleInbound)
			})
		}
	})

	if cfg.AdminCatalog != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Post("/branches/{branchID}/qr-token/rotate", cfg.AdminCatalog.RotateQRToken)
			admin.Post("/branches/{branchID}/menu/invalidate", cfg.AdminCatalog.InvalidateMenu)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
