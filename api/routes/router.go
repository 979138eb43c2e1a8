package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendaslabs/orders-backend/api/controllers"
	"github.com/vendaslabs/orders-backend/api/middleware"
	"github.com/vendaslabs/orders-backend/internal/catalog"
	"github.com/vendaslabs/orders-backend/internal/credentials"
	"github.com/vendaslabs/orders-backend/internal/orchestrator"
	internalorders "github.com/vendaslabs/orders-backend/internal/orders"
	"github.com/vendaslabs/orders-backend/internal/relay"
	"github.com/vendaslabs/orders-backend/internal/reports"
	"github.com/vendaslabs/orders-backend/internal/token"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/db"
	"github.com/vendaslabs/orders-backend/pkg/enums"
	"github.com/vendaslabs/orders-backend/pkg/logger"
	"github.com/vendaslabs/orders-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        redis.Pinger
	Credentials  credentials.Service
	Tokens       token.Service
	Catalog      catalog.Adapter
	Ledger       internalorders.Service
	Orchestrator orchestrator.Service
	Reports      reports.Service
	Outbox       relay.Repository
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(params.Credentials, logg))
		r.Post("/login", controllers.AuthLogin(params.Credentials, params.Tokens, logg))
		r.Post("/refresh", controllers.AuthRefresh(params.Tokens, logg))
		r.Post("/logout", controllers.AuthLogout(params.Tokens, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(params.Tokens, logg))

		r.Get("/users/me", controllers.Me(params.Credentials, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(params.Catalog, logg))
			r.Get("/{sku}", controllers.ProductGet(params.Catalog, logg))
			r.With(middleware.RequireRole(enums.RoleAdmin, logg)).
				Put("/{sku}", controllers.ProductUpsert(params.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderPlace(params.Orchestrator, logg))
			r.Get("/", controllers.OrderList(params.Ledger, logg))
			r.Get("/{orderId}", controllers.OrderGet(params.Ledger, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(params.Orchestrator, params.Ledger, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleOperator, logg))
				r.Post("/{orderId}/confirm", controllers.OrderConfirm(params.Orchestrator, logg))
				r.Post("/{orderId}/fulfill", controllers.OrderFulfill(params.Orchestrator, logg))
				r.Post("/{orderId}/refund", controllers.OrderRefund(params.Orchestrator, logg))
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleOperator, logg))
			r.Get("/customers/{customerId}", controllers.ReportCustomerSummary(params.Reports, logg))
			r.Get("/products/top", controllers.ReportTopProducts(params.Reports, logg))
			r.Get("/sales/daily", controllers.ReportDailySales(params.Reports, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Post("/users", controllers.AdminCreateUser(params.Credentials, logg))
			r.Delete("/users/{userId}", controllers.AdminDeactivateUser(params.Credentials, params.Tokens, logg))
			r.Get("/outbox/failed", controllers.OutboxFailed(params.Outbox, logg))
		})
	})

	return r
}
