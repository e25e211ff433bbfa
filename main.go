package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olauber7232/tournament-latest-1/config"
	"github.com/olauber7232/tournament-latest-1/handlers"
	"github.com/olauber7232/tournament-latest-1/logger"
	"github.com/olauber7232/tournament-latest-1/metrics"
	"github.com/olauber7232/tournament-latest-1/middleware"
	"github.com/olauber7232/tournament-latest-1/models"
	"github.com/olauber7232/tournament-latest-1/notify"
	"github.com/olauber7232/tournament-latest-1/services"
	"github.com/olauber7232/tournament-latest-1/utils"
	"github.com/olauber7232/tournament-latest-1/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, warnings, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal("failed to build logger: ", err)
	}
	defer func() { _ = zl.Sync() }()
	for _, w := range warnings {
		zl.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var images services.ImageStore
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Store(ctx, cfg.R2.AccountID, cfg.R2.AccessKeyID, cfg.R2.AccessKeySecret, cfg.R2.Bucket, cfg.R2.CDNBaseURL)
		if err != nil {
			zl.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		images = r2
	} else {
		local, err := utils.NewLocalStore("./uploads", "/uploads")
		if err != nil {
			zl.Fatal("failed to ensure upload dir", zap.Error(err))
		}
		zl.Warn("R2 is not configured; tournament images are stored on local disk")
		images = local
	}

	var alerts services.Alerter = notify.LogAlerter{Log: zl}
	if cfg.Alerts.ResendAPIKey != "" && len(cfg.Alerts.To) > 0 {
		alerts = notify.NewResendAlerter(cfg.Alerts.ResendAPIKey, cfg.Alerts.From, cfg.Alerts.To, zl)
	}

	gateway := &services.CashfreeClient{
		AppID:              cfg.Cashfree.AppID,
		SecretKey:          cfg.Cashfree.SecretKey,
		PayoutClientID:     cfg.Cashfree.PayoutClientID,
		PayoutClientSecret: cfg.Cashfree.PayoutClientSecret,
		PaymentsURL:        cfg.Cashfree.PaymentsBaseURL(),
		PayoutURL:          cfg.Cashfree.PayoutBaseURL(),
		ReturnURL:          cfg.Cashfree.ReturnURL,
		Client:             utils.NewHTTPClient(cfg.Cashfree.Timeout),
		Log:                zl.Named("cashfree"),
		Metrics:            m,
	}

	clock := clockwork.NewRealClock()
	ledger := services.NewLedger(clock, zl.Named("ledger"))
	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.JWTTTL, clock, zl.Named("auth"))
	userService := services.NewUserService(db, ledger, zl.Named("users"))
	gameService := services.NewGameService(db)
	tournamentService := services.NewTournamentService(db, ledger, clock, zl.Named("tournaments"), images, m)
	resultService := services.NewResultService(db, ledger, tournamentService, zl.Named("results"), m)
	paymentService := services.NewPaymentService(db, ledger, gateway, services.NewKeyedMutex(), clock, zl.Named("payments"), alerts, m)
	supportService := services.NewSupportService(db, zl.Named("support"), alerts)

	if err := services.Seed(ctx, db, authService, tournamentService, cfg.AdminUsername, cfg.AdminPassword, cfg.SeedDemoData, zl); err != nil {
		zl.Fatal("failed to seed database", zap.Error(err))
	}

	sched, err := tournamentService.StartStatusScheduler(ctx, cfg.StatusSweepInterval)
	if err != nil {
		zl.Fatal("failed to start status scheduler", zap.Error(err))
	}
	go workers.PollWithdrawals(ctx, paymentService, cfg.WithdrawalPollInterval, zl.Named("withdrawals"))

	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler(zl),
	})
	app.Use(middleware.RequestLogger(zl.Named("http"), m))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	app.Static("/uploads", "./uploads")

	h := handlers.New(authService, userService, gameService, tournamentService, resultService, paymentService, supportService, zl)
	handlers.Setup(app, h, cfg.Cashfree.WebhookSecret)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("server error", zap.Error(err))
			stop()
		}
	}()
	zl.Info("server running",
		zap.String("port", cfg.Port),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("cashfree_env", cfg.Cashfree.Environment),
		zap.Strings("allowed_origins", cfg.AllowedOrigins))

	<-ctx.Done()
	zl.Info("shutting down")

	if err := sched.Shutdown(); err != nil {
		zl.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zl.Warn("server shutdown", zap.Error(err))
	}
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	if cfg.DBDriver == "sqlite" {
		db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	return gorm.Open(postgres.Open(cfg.DatabaseURL), gcfg)
}
