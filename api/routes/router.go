package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/communahq/communa-backend/api/controllers"
	"github.com/communahq/communa-backend/api/middleware"
	auditsvc "github.com/communahq/communa-backend/internal/audit"
	"github.com/communahq/communa-backend/internal/notifications"
	"github.com/communahq/communa-backend/internal/purchase"
	"github.com/communahq/communa-backend/internal/settlement"
	"github.com/communahq/communa-backend/internal/wallet"
	"github.com/communahq/communa-backend/pkg/config"
	"github.com/communahq/communa-backend/pkg/db"
	"github.com/communahq/communa-backend/pkg/enums"
	"github.com/communahq/communa-backend/pkg/logger"
	"github.com/communahq/communa-backend/pkg/metrics"
	"github.com/communahq/communa-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	settlementService settlement.Service,
	purchaseService purchase.Service,
	walletService wallet.Service,
	auditService auditsvc.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", controllers.CreateItem(settlementService, logg))
			r.Delete("/{itemID}", controllers.DeleteItem(settlementService, logg))
			r.Post("/{itemID}/participation", controllers.SetParticipation(settlementService, logg))
		})
		r.Get("/houses/{houseID}/items", controllers.ListItems(settlementService, logg))
		r.Get("/houses/{houseID}/audit", controllers.ListAuditTrail(auditService, logg))

		r.Post("/checkout", controllers.Checkout(purchaseService, logg))
		r.Post("/products/{productID}/buy", controllers.BuyOne(purchaseService, logg))
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.ListCart(purchaseService, logg))
			r.Post("/", controllers.AddToCart(purchaseService, logg))
			r.Delete("/{productID}", controllers.RemoveFromCart(purchaseService, logg))
		})
		r.Get("/orders", controllers.ListOrders(purchaseService, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(walletService, logg))
			r.Get("/transactions", controllers.WalletTransactions(walletService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.MemberRoleAdmin), logg))

		r.Post("/deposits", controllers.AdminDeposit(walletService, logg))
	})

	return r
}
