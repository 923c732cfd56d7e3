package handlers

import (
	"errors"
	"strings"

	"firecontest-backend/middleware"
	"firecontest-backend/services"
	"firecontest-backend/utils/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs. Gateway and AuthLimiter are
// optional; a nil Gateway disables online checkout.
type Deps struct {
	DB        *gorm.DB
	Tokens    *services.TokenService
	Auth      *services.AuthService
	Contests  *services.ContestService
	Payments  *services.PaymentService
	Gateway   *services.GatewayService
	Content   *services.ContentService
	Dashboard *services.DashboardService
	Metrics   *services.Metrics

	AuthLimiter    *middleware.IPRateLimiter
	AllowedOrigins []string
	BodyLimitMB    int
	// UploadDir is served at /uploads when uploads are stored locally.
	UploadDir string
}

// NewApp builds the fiber application with every route mounted under /api.
func NewApp(d Deps) *fiber.App {
	bodyLimit := d.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 10
	}
	app := fiber.New(fiber.Config{
		AppName:      "firecontest",
		BodyLimit:    bodyLimit * 1024 * 1024,
		ErrorHandler: ErrorHandler,
	})

	var durations *prometheus.HistogramVec
	if d.Metrics != nil {
		durations = d.Metrics.RequestDuration
	}
	app.Use(middleware.RequestLogger(durations))
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(corsHandler(d.AllowedOrigins))

	app.Get("/health", health(d.DB))
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	if d.UploadDir != "" {
		app.Static("/uploads", d.UploadDir)
	}

	limit := func(c *fiber.Ctx) error { return c.Next() }
	if d.AuthLimiter != nil {
		limit = middleware.RateLimit(d.AuthLimiter)
	}
	user := middleware.RequireUser(d.Tokens)
	admin := middleware.RequireAdmin(d.Tokens)

	api := app.Group("/api")
	SetupAuthRoutes(api, d.Auth, limit)
	SetupContestRoutes(api, d.Contests, user)
	SetupPaymentRoutes(api, d.Payments, d.Gateway, user, admin)
	SetupAdminRoutes(api, d, limit, admin)
	SetupContentRoutes(api, d.Content, admin)

	return app
}

func corsHandler(origins []string) fiber.Handler {
	allowed := strings.Join(origins, ",")
	if allowed == "" {
		allowed = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowed,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, x-auth-token",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition",
		AllowCredentials: allowed != "*",
		MaxAge:           86400,
	})
}

func health(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.UserContext())
			}
			if err != nil {
				logger.Errorf("[HEALTH] database unreachable: %v", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// ErrorHandler renders service errors with their mapped status and hides
// everything else behind a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var se *services.Error
	if errors.As(err, &se) {
		return c.Status(se.Kind.Status()).JSON(fiber.Map{"msg": se.Msg})
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"msg": fe.Message})
	}
	logger.Errorf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"msg": "Server error"})
}
