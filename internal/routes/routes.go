package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agora-community/agora_wallet/internal/auth"
	"github.com/agora-community/agora_wallet/internal/config"
	"github.com/agora-community/agora_wallet/internal/funding"
	"github.com/agora-community/agora_wallet/internal/identity"
	"github.com/agora-community/agora_wallet/internal/ledger"
	"github.com/agora-community/agora_wallet/internal/middleware"
	"github.com/agora-community/agora_wallet/internal/notification"
	"github.com/agora-community/agora_wallet/internal/payments"
	"github.com/agora-community/agora_wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. Without a database
// or Redis the service falls back to in-memory backends, which is only
// allowed in dev.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, d.Cfg.DefaultCurrency)
	} else {
		store = ledger.NewInMemory()
	}

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	var notifier notification.Notifier
	if d.Cache != nil {
		notifier = notification.NewRedisNotifier(d.Cache, notification.DefaultChannel, d.Logger)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc)
	walletSvc := wallet.NewService(store)
	walletHandler := wallet.NewHandler(walletSvc)
	paymentSvc := payments.NewService(store, identitySvc, notifier)
	paymentHandler := payments.NewHandler(paymentSvc)
	fundingSvc := funding.NewService(store, funding.StubProvider{}, notifier, d.Cfg.WebhookSecret, d.Logger)
	fundingHandler := funding.NewHandler(fundingSvc)

	// Provider callbacks authenticate with an HMAC signature, not a bearer
	// token, and carry their own replay protection via provider references.
	RegisterWebhookRoutes(app, fundingHandler)

	api := app.Group("/api/v1")

	// Public routes
	RegisterIdentityRoutes(api, identitySvc, d.Logger)
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes
	jwtmw := middleware.JWTAuth(d.Cfg, identityRepo)
	protected := api.Group("", jwtmw)
	protected.Post("/auth/logout", authHandler.Logout)
	RegisterWalletRoutes(protected, walletHandler)

	// Money movements additionally require an Idempotency-Key so client
	// retries never double-spend.
	var money fiber.Router = protected
	if d.Cache != nil {
		money = protected.Group("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterPaymentRoutes(money, paymentHandler)
	RegisterFundingRoutes(money, fundingHandler)

	admin := protected.Group("/admin", middleware.RequireAdmin())
	RegisterAdminRoutes(admin, fundingHandler)

	return nil
}
