package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jessebugclark-dot/Jesselovesmovies/internal/venmo"
)

// RouterConfig carries the handlers' dependencies and the route secrets.
type RouterConfig struct {
	Orders interface {
		OrderCreator
		OrderStatusReader
		SeatLister
	}
	Reconciler interface {
		PaymentReconciler
		PassRunner
	}
	Admin  AdminOrderService
	Parser *venmo.Parser
	Logger *zap.SugaredLogger

	AllowedOrigins []string
	WebhookSecret  string
	CronSecret     string
	AdminToken     string
}

// NewRouter assembles the public, webhook, cron and admin routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(cfg.Logger))
	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", HandleCreateOrder(cfg.Orders))
		r.Get("/orders/status", HandleOrderStatus(cfg.Orders))
		r.Get("/seats", HandleSeats(cfg.Orders))

		r.With(BearerAuth(cfg.WebhookSecret)).
			Post("/venmo-payment-hook", HandleVenmoWebhook(cfg.Reconciler, cfg.Parser))
		r.With(BearerAuth(cfg.CronSecret)).
			Get("/cron/check-venmo", HandleCheckVenmo(cfg.Reconciler))

		r.Route("/admin", func(r chi.Router) {
			r.Use(BearerAuth(cfg.AdminToken))
			r.Get("/orders", HandleAdminListOrders(cfg.Admin))
			r.Post("/cancel-order", HandleAdminCancelOrder(cfg.Admin))
			r.Post("/mark-paid", HandleAdminMarkPaid(cfg.Admin))
			r.Post("/resend-ticket", HandleAdminResendTicket(cfg.Admin))
			r.Post("/manual-ticket", HandleAdminManualTicket(cfg.Admin))
		})
	})

	return CORS(cfg.AllowedOrigins, r)
}
