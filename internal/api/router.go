package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/winmicro/wallet-engine/internal/api/handler"
	"github.com/winmicro/wallet-engine/internal/api/middleware"
	"github.com/winmicro/wallet-engine/internal/api/spec"
	"github.com/winmicro/wallet-engine/internal/config"
	"github.com/winmicro/wallet-engine/internal/idempotency"
	"github.com/winmicro/wallet-engine/internal/service"
	"go.uber.org/zap"
)

// Router assembles the HTTP surface from the wired services.
type Router struct {
	cfg           *config.Config
	logger        *zap.Logger
	db            *pgxpool.Pool
	redis         redis.Cmdable
	idemStore     *idempotency.Store
	settlementSvc *service.SettlementService
	walletSvc     *service.WalletService
	settingsSvc   *service.SettingsService
	reconSvc      *service.ReconciliationService
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	idemStore *idempotency.Store,
	settlementSvc *service.SettlementService,
	walletSvc *service.WalletService,
	settingsSvc *service.SettingsService,
	reconSvc *service.ReconciliationService,
) *Router {
	return &Router{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		redis:         redisClient,
		idemStore:     idemStore,
		settlementSvc: settlementSvc,
		walletSvc:     walletSvc,
		settingsSvc:   settingsSvc,
		reconSvc:      reconSvc,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	authHandler := handler.NewAuthHandler()
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	walletHandler := handler.NewWalletHandler(api.settlementSvc, api.walletSvc)
	callbackHandler := handler.NewCallbackHandler(api.settlementSvc)
	adminHandler := handler.NewAdminHandler(api.settlementSvc, api.settingsSvc, api.walletSvc, api.reconSvc)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Operational endpoints.
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes. Gateway callbacks authenticate via provider signature.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/callbacks/{provider}", callbackHandler.HandleDepositCallback)
	})

	// Authenticated user routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.With(idem).Post("/v1/wallet/deposits", walletHandler.InitiateDeposit)
		r.Post("/v1/wallet/deposits/{reference}/confirm", walletHandler.ConfirmDeposit)
		r.With(idem).Post("/v1/wallet/withdrawals", walletHandler.InitiateWithdrawal)
		r.Get("/v1/wallet/balance", walletHandler.GetBalance)
		r.Get("/v1/wallet/transactions", walletHandler.GetStatement)
		r.Get("/v1/wallet/transactions/{reference}", walletHandler.GetTransaction)
		r.Get("/v1/wallet/earnings", walletHandler.GetEarnings)
	})

	// Admin routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.RequireRole(middleware.RoleAdmin))
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/admin/settings", adminHandler.GetSettings)
		r.Put("/v1/admin/settings", adminHandler.UpdateSettings)
		r.Post("/v1/admin/withdrawals/{reference}/resolve", adminHandler.ResolveWithdrawal)
		r.With(idem).Post("/v1/admin/credits", adminHandler.CreditInternal)
		r.Get("/v1/admin/wallets", adminHandler.GetAdminWallets)
		r.Post("/v1/admin/reconciliation", adminHandler.RunReconciliation)
		r.Get("/v1/admin/pending", adminHandler.GetPendingBacklog)
	})

	return r
}
