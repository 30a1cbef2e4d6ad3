package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bridge-pay/bridge_pay/internal/config"
	"github.com/bridge-pay/bridge_pay/internal/intake"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/merchant"
	"github.com/bridge-pay/bridge_pay/internal/middleware"
	"github.com/bridge-pay/bridge_pay/internal/notification"
	"github.com/bridge-pay/bridge_pay/internal/settlement"
	"github.com/bridge-pay/bridge_pay/internal/transaction"
)

// Deps aggregates shared dependencies required to wire routes. The storage
// fields override the DB-derived backends when set; tests use them to inject
// seeded in-memory implementations.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	Ledger       ledger.Ledger
	Transactions transaction.Repository
	Merchants    merchant.Repository
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Storage backends
	ledgerBackend := d.Ledger
	transactionRepo := d.Transactions
	merchantRepo := d.Merchants
	if ledgerBackend == nil {
		if d.DB != nil {
			ledgerBackend = ledger.NewPostgresLedger(d.DB)
		} else {
			ledgerBackend = ledger.NewInMemory()
			// Without a database the custody account must still exist.
			if err := ledgerBackend.CreateAccount(context.Background(), ledger.Account{
				Number:     d.Cfg.CustodyAccount,
				HolderName: "Custody",
				BankCode:   "CSTD",
				BankName:   "Custody Holding",
				Status:     ledger.StatusActive,
			}); err != nil {
				return err
			}
		}
	}
	if transactionRepo == nil {
		if d.DB != nil {
			transactionRepo = transaction.NewPostgresRepository(d.DB)
		} else {
			transactionRepo = transaction.NewMemoryRepository()
		}
	}
	if merchantRepo == nil {
		if d.DB != nil {
			merchantRepo = merchant.NewPostgresRepository(d.DB)
		} else {
			merchantRepo = merchant.NewMemoryRepository()
		}
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	intakeSvc := intake.NewService(ledgerBackend, transactionRepo, merchantRepo, notifier, d.Logger,
		d.Cfg.CustodyAccount, d.Cfg.CommissionBps)
	engine := settlement.NewEngine(ledgerBackend, transactionRepo, notifier, d.Logger)

	intakeHandler := intake.NewHandler(intakeSvc)
	settlementHandler := settlement.NewHandler(engine, transactionRepo)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	paymentCooldown := middleware.PaymentCooldown(d.Cache, d.Cfg.PaymentCooldown)
	RegisterPaymentRoutes(api, intakeHandler, paymentCooldown)
	RegisterTransactionRoutes(api, settlementHandler)
	RegisterAdminRoutes(api, settlementHandler)

	return nil
}
