package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/friendcoin/friendcoin/internal/accounts"
	"github.com/friendcoin/friendcoin/internal/circulation"
	"github.com/friendcoin/friendcoin/internal/config"
	"github.com/friendcoin/friendcoin/internal/coupons"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/loans"
	"github.com/friendcoin/friendcoin/internal/market"
	"github.com/friendcoin/friendcoin/internal/merchant"
	"github.com/friendcoin/friendcoin/internal/metrics"
	"github.com/friendcoin/friendcoin/internal/middleware"
	"github.com/friendcoin/friendcoin/internal/notification"
	"github.com/friendcoin/friendcoin/internal/payments"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Store overrides the ledger store otherwise chosen from DB.
	Store    ledger.Store
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDevelopment() && d.Store == nil {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	app.Use(d.Metrics.Middleware())

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", d.Metrics.Handler())

	// Services and handlers
	store := d.Store
	if store == nil {
		if d.DB != nil {
			store = ledger.NewPostgresStore(d.DB, d.Cfg.TotalBaseCoins)
		} else {
			store = ledger.NewInMemory(d.Cfg.TotalBaseCoins)
		}
	}
	engine := ledger.NewEngine(store,
		ledger.WithTaxRate(d.Cfg.TransferTaxRate),
		ledger.WithLoanTerm(d.Cfg.LoanTermMonths),
	)

	var sessions merchant.SessionStore
	if d.Cache != nil {
		sessions = merchant.NewRedisSessionStore(d.Cache)
	} else {
		sessions = merchant.NewMemorySessionStore()
	}

	accountHandler := accounts.NewHandler(accounts.NewService(store, d.Logger))
	paymentHandler := payments.NewHandler(payments.NewService(engine, d.Notifier, d.Metrics, d.Logger))
	loanHandler := loans.NewHandler(loans.NewService(engine, d.Notifier, d.Metrics, d.Logger))
	couponHandler := coupons.NewHandler(coupons.NewService(engine, d.Notifier, d.Metrics, d.Logger))
	marketHandler := market.NewHandler(market.NewService(engine, d.Metrics, d.Logger))
	merchantHandler := merchant.NewHandler(merchant.NewService(engine, sessions, d.Cfg.SessionTTL, d.Notifier, d.Metrics, d.Logger))
	circulationHandler := circulation.NewHandler(circulation.NewService(engine, d.Metrics, d.Logger))

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.GetRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Protected routes
	protected := api.Group("", middleware.BearerAuth(d.Cfg.JWTSecret), middleware.RateLimit(d.Cache, d.Cfg.RatePerMinute))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	admin := middleware.RequireRole(middleware.RoleAdmin)

	RegisterAccountRoutes(protected, accountHandler, admin)
	RegisterPaymentRoutes(protected, paymentHandler)
	RegisterLoanRoutes(protected, loanHandler)
	RegisterCouponRoutes(protected, couponHandler)
	RegisterMarketRoutes(protected, marketHandler, admin)
	RegisterMerchantRoutes(protected, merchantHandler)
	RegisterCirculationRoutes(protected, circulationHandler, admin)

	return nil
}
