package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firecontest-backend/config"
	"firecontest-backend/database"
	"firecontest-backend/handlers"
	"firecontest-backend/middleware"
	"firecontest-backend/services"
	"firecontest-backend/utils"
	"firecontest-backend/utils/logger"
	"firecontest-backend/workers"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, reading environment variables directly")
	}

	app := &cli.App{
		Name:  "firecontest",
		Usage: "contest and payment backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to an optional YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema and exit",
				Action: migrate,
			},
			{
				Name:  "seed-admin",
				Usage: "create an admin or reset its password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
				},
				Action: seedAdmin,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("fatal: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// bootstrap loads config, starts logging and opens a migrated database.
func bootstrap(c *cli.Context) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Encoding); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return cfg, db, nil
}

func migrate(c *cli.Context) error {
	_, db, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer database.Close(db)
	logger.Infof("database schema is up to date")
	return nil
}

func seedAdmin(c *cli.Context) error {
	cfg, db, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer database.Close(db)

	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.UserTokenTTL, cfg.Auth.AdminTokenTTL)
	auth := services.NewAuthService(db, tokens, nil, cfg.Auth.ResetTokenTTL, cfg.Server.FrontendURL)
	admin, err := auth.CreateAdmin(c.Context, c.String("email"), c.String("password"))
	if err != nil {
		return err
	}
	logger.Infof("admin ready id=%s email=%s", admin.ID, admin.Email)
	return nil
}

func newUploader(ctx context.Context, cfg config.StorageConfig) (utils.Uploader, string, error) {
	if cfg.Driver == "r2" {
		r2, err := utils.NewR2Storage(ctx, cfg.R2)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		return r2, "", nil
	}
	local, err := utils.NewLocalStorage(cfg.LocalDir, cfg.PublicBase)
	if err != nil {
		return nil, "", fmt.Errorf("failed to ensure upload dir: %w", err)
	}
	return local, cfg.LocalDir, nil
}

func serve(c *cli.Context) error {
	cfg, db, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer database.Close(db)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploader, uploadDir, err := newUploader(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	metrics := services.NewMetrics()

	var sender workers.Sender = workers.LogSender{}
	if cfg.SMTP.Enabled() {
		sender = workers.NewSMTPSender(cfg.SMTP)
	} else {
		logger.Warnf("SMTP credentials not set, emails will only be logged")
	}
	mailer := workers.NewMailWorker(sender, 256, 2, metrics.Emails)
	mailer.Start(ctx)

	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.UserTokenTTL, cfg.Auth.AdminTokenTTL)
	auth := services.NewAuthService(db, tokens, mailer, cfg.Auth.ResetTokenTTL, cfg.Server.FrontendURL)
	contests := services.NewContestService(db, uploader, metrics)
	payments := services.NewPaymentService(db, uploader, mailer, metrics)

	var gateway *services.GatewayService
	if cfg.Razorpay.KeyID != "" && cfg.Razorpay.KeySecret != "" {
		client := utils.NewRazorpayClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
		gateway = services.NewGatewayService(db, client, payments, cfg.Razorpay.Currency, cfg.Razorpay.KeyID)
	} else {
		logger.Warnf("Razorpay keys not set, online checkout disabled")
	}

	scheduler := services.NewScheduler(contests, auth, mailer)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Errorf("scheduler shutdown: %v", err)
		}
	}()

	app := handlers.NewApp(handlers.Deps{
		DB:             db,
		Tokens:         tokens,
		Auth:           auth,
		Contests:       contests,
		Payments:       payments,
		Gateway:        gateway,
		Content:        services.NewContentService(db, uploader),
		Dashboard:      services.NewDashboardService(db),
		Metrics:        metrics,
		AuthLimiter:    middleware.PerMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		BodyLimitMB:    cfg.Server.BodyLimitMB,
		UploadDir:      uploadDir,
	})

	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(":" + cfg.Server.Port)
	}()
	logger.Infof("server running on :%s storage=%s", cfg.Server.Port, cfg.Storage.Driver)
	logger.Infof("CORS configured for origins: %v", cfg.Server.AllowedOrigins)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	select {
	case <-mailer.Done():
	case <-time.After(5 * time.Second):
		logger.Warnf("mail worker did not stop in time")
	}
	return nil
}
