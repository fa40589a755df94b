package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/taxpipe/config"
	"github.com/jordanlanch/taxpipe/pkg/api/handlers"
	"github.com/jordanlanch/taxpipe/pkg/cache"
	"github.com/jordanlanch/taxpipe/pkg/cadence"
	"github.com/jordanlanch/taxpipe/pkg/dispatch"
	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/jobs"
	"github.com/jordanlanch/taxpipe/pkg/logger"
	"github.com/jordanlanch/taxpipe/pkg/logics"
	"github.com/jordanlanch/taxpipe/pkg/metrics"
	"github.com/jordanlanch/taxpipe/pkg/models"
	"github.com/jordanlanch/taxpipe/pkg/period"
	"github.com/jordanlanch/taxpipe/pkg/schedule"
	"github.com/jordanlanch/taxpipe/pkg/store"
	"github.com/jordanlanch/taxpipe/pkg/token"
	"github.com/jordanlanch/taxpipe/pkg/verification"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel)
	appLog.Info("configuration loaded", "environment", cfg.APIEnvironment)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			AttachStacktrace: true,
		})
		if err != nil {
			appLog.Warn("failed to initialize sentry", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Cadence table is static data; a mis-specified table must not start.
	if err := cadence.Default.Validate(); err != nil {
		log.Fatalf("invalid cadence table: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	st := store.NewPostgres(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	provider := logics.NewClient(map[models.Domain]logics.Endpoint{
		models.DomainTAG:   {BaseURL: cfg.LogicsTAGBaseURL, APIKey: cfg.LogicsTAGKey},
		models.DomainWYNN:  {BaseURL: cfg.LogicsWYNNBaseURL, APIKey: cfg.LogicsWYNNKey},
		models.DomainAMITY: {BaseURL: cfg.LogicsAMITYBaseURL, APIKey: cfg.LogicsAMITYKey},
	})

	m := metrics.New()

	gateCfg := verification.DefaultConfig()
	gateCfg.PaymentCeiling = cfg.PaymentCeiling
	gateCfg.ConversionTolerance = cfg.ConversionTolerance
	gate := verification.NewGate(provider, gateCfg, appLog.With("component", "gate"))

	builderCfg := schedule.DefaultConfig()
	builderCfg.SaleWindow = time.Duration(cfg.SaleWindowDays) * 24 * time.Hour
	builderCfg.Pace = cfg.TextPace
	builder := schedule.NewBuilder(st, st, st, gate, cadence.Default, builderCfg, m,
		appLog.With("component", "daily-builder"))

	// The period build is the list-level pass, so it runs the strict profile:
	// tier matching plus the do-not-contact phrase scan.
	strictCfg := verification.StrictConfig()
	strictCfg.PaymentCeiling = cfg.PaymentCeiling
	strictCfg.ConversionTolerance = cfg.ConversionTolerance
	strictCfg.Tier4Window = time.Duration(cfg.Tier4WindowDays) * 24 * time.Hour
	strictGate := verification.NewGate(provider, strictCfg, appLog.With("component", "strict-gate"))

	periodCfg := period.DefaultConfig()
	periodCfg.PaymentCeiling = cfg.PaymentCeiling
	periodCfg.InvoiceRecency = time.Duration(cfg.InvoiceRecencyDays) * 24 * time.Hour
	periodCfg.InvoiceFloor = cfg.InvoiceFloor
	periodCfg.Cooldown = cfg.PeriodCooldown
	periodBuilder := period.NewBuilder(st, st, strictGate, periodCfg, m,
		appLog.With("component", "period-builder"))

	reviews := cache.NewReviewCache(redisClient, st, cfg.ReviewCacheTTL)
	tokens := token.NewService(cfg.TokenSecret, cfg.TokenTTL)

	var emails domain.EmailSender
	if cfg.SendGridAPIKey != "" {
		emails = dispatch.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom,
			cfg.EmailFromName, cfg.SchedulingURL, dispatch.DefaultTemplates())
	} else {
		appLog.Warn("SENDGRID_API_KEY not set, emails log to console")
		emails = &dispatch.ConsoleEmailSender{Log: appLog.With("component", "email-sender")}
	}
	var texts domain.TextSender
	if cfg.TextProviderKey != "" {
		texts = dispatch.NewTextProviderSender(cfg.TextProviderBaseURL, cfg.TextProviderKey,
			cfg.TextFromNumber, cfg.SchedulingURL, dispatch.DefaultTextTemplates())
	} else {
		appLog.Warn("TEXT_PROVIDER_API_KEY not set, texts log to console")
		texts = &dispatch.ConsoleTextSender{Log: appLog.With("component", "text-sender")}
	}
	dispatcher := dispatch.NewDispatcher(st, emails, texts,
		1.0, m, appLog.With("component", "dispatcher"))

	cronLog := log.New(os.Stdout, "[cron] ", log.LstdFlags)
	cm := jobs.NewCronManager(builder, dispatcher, reviews, cronLog)
	if err := cm.SetupJobs(); err != nil {
		log.Fatalf("failed to set up cron jobs: %v", err)
	}
	cm.Start()
	defer cm.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := handlers.NewPipelineHandler(builder, periodBuilder, reviews, st, st, tokens)
	h.Register(e.Group("/api/v1"))

	go func() {
		addr := cfg.APIHost + ":" + cfg.APIPort
		appLog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		appLog.Error("shutdown error", "error", err)
	}
}
