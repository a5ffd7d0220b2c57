package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/panadol94/tipsmega-api/internal/auth"
	"github.com/panadol94/tipsmega-api/internal/binding"
	"github.com/panadol94/tipsmega-api/internal/config"
	"github.com/panadol94/tipsmega-api/internal/device"
	"github.com/panadol94/tipsmega-api/internal/identity"
	"github.com/panadol94/tipsmega-api/internal/ledger"
	"github.com/panadol94/tipsmega-api/internal/middleware"
	"github.com/panadol94/tipsmega-api/internal/notify"
	"github.com/panadol94/tipsmega-api/internal/otp"
	"github.com/panadol94/tipsmega-api/internal/referral"
	"github.com/panadol94/tipsmega-api/internal/telegram"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// openMembership admits everyone; used in dev when no bot token is set.
type openMembership struct{}

func (openMembership) IsMember(context.Context, string) (bool, error) { return true, nil }

// Setup configures middlewares and all application routes. Repositories run
// on Postgres when a pool is present and fall back to in-memory stores in dev.
func Setup(app *fiber.App, d Deps) error {
	if !isDev(d.Cfg.AppEnv) {
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
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var (
		ids      identity.Repository
		devices  device.Repository
		bindings binding.Repository
		events   referral.Log
		ledg     ledger.Ledger
	)
	if d.DB != nil {
		ids = identity.NewPostgresRepository(d.DB)
		devices = device.NewPostgresRepository(d.DB)
		bindings = binding.NewPostgresRepository(d.DB)
		events = referral.NewPostgresLog(d.DB)
		ledg = ledger.NewPostgresLedger(d.DB)
	} else {
		ids = identity.NewMemoryRepository()
		devices = device.NewMemoryRepository()
		bindings = binding.NewMemoryRepository()
		events = referral.NewMemoryLog()
		ledg = ledger.NewInMemory(ids, devices, events)
	}

	deviceSvc, err := device.NewService(devices, d.Cfg.DailyLimit, d.Cfg.Timezone)
	if err != nil {
		return err
	}

	var (
		notifier  notify.Notifier
		members   otp.MembershipChecker
		botClient *telegram.Client
	)
	if d.Cfg.BotToken != "" {
		botClient = telegram.NewClient(d.Cfg.BotToken)
		memberships := telegram.NewMemberships(botClient, d.Cfg.UserGroupID, d.Cfg.AdminGroupID)
		notifier = telegram.NewNotifier(botClient)
		members = memberships
	} else {
		// Codes land in the log and the membership gate is open.
		notifier = notify.NewLoggerNotifier(d.Logger)
		members = openMembership{}
	}

	var challenges otp.Store
	if d.Cache != nil {
		challenges = otp.NewRedisStore(d.Cache)
	} else {
		challenges = otp.NewMemoryStore()
	}

	otpSvc := otp.NewService(challenges, bindings, members,
		notifier, d.Cfg.AuthSecret, d.Cfg.OTPTTL, d.Logger)
	accountSvc := auth.NewService(ids, otpSvc, ledg, d.Cfg.AuthSecret, d.Cfg.TokenMaxAge, d.Logger)

	authHandler := auth.NewHandler(accountSvc, otpSvc, ledg, ids, d.Cfg.GroupLink)
	deviceHandler := device.NewHandler(deviceSvc)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterDeviceRoutes(api, deviceHandler)

	rateLimiter := middleware.OTPRateLimit(d.Cache, 3)
	session := middleware.SessionAuth(accountSvc)
	RegisterAuthRoutes(api, authHandler, rateLimiter, session)

	if botClient != nil {
		admins := telegram.NewMemberships(botClient, d.Cfg.UserGroupID, d.Cfg.AdminGroupID)
		hook := telegram.NewWebhook(botClient, bindings, ledg, admins, d.Cfg.GroupLink, d.Logger)
		RegisterTelegramRoutes(app, hook)
	}

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
