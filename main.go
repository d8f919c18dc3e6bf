package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trend-spotting-system/config"
	"trend-spotting-system/handlers"
	"trend-spotting-system/logger"
	"trend-spotting-system/middleware"
	"trend-spotting-system/models"
	"trend-spotting-system/services"
	"trend-spotting-system/utils"
	"trend-spotting-system/workers"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("production")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Env)
	if envErr != nil {
		log.Warn().Msg("⚠️  No .env file found, reading environment variables directly")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.SpotterProfile{},
		&models.TrendSubmission{},
		&models.EarningsLedger{},
		&models.ScrollSession{},
		&models.AchievementType{},
		&models.SpotterAchievement{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newScreenshotStore(ctx, cfg, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := services.NewMetrics(registry)

	backend := services.NewBackendClient(cfg.BackendURL, cfg.BackendKey, cfg.BackendTimeout, log, metrics)
	backend.Client = utils.HTTPClient

	policy, err := services.NewQualityPolicy(cfg.QualityPolicy)
	if err != nil {
		log.Fatal().Err(err).Str("policy", cfg.QualityPolicy).Msg("unknown quality policy")
	}
	calc := services.NewPaymentCalculator(cfg.ScrollBaseRate, cfg.ValidationBaseRate, cfg.MaxSubmissionPay)

	spotterService := services.NewSpotterService(db, log)
	achievementService := services.NewAchievementService(db, log)
	if err := achievementService.SeedAchievementTypes(); err != nil {
		log.Fatal().Err(err).Msg("failed to seed achievement types")
	}
	earningsService := services.NewEarningsService(db, log)
	enterpriseService := services.NewEnterpriseService(db, log)

	sessions := services.NewSessionRegistry(db, services.StreakConfig{
		Window:          cfg.StreakWindow,
		Timeout:         cfg.StreakTimeout,
		TrendsForStreak: cfg.TrendsForStreak,
	}, calc, spotterService, achievementService, metrics, log)
	submissionService := services.NewSubmissionService(db, policy, calc, sessions, achievementService, metrics, log)
	validationService := services.NewValidationService(db, backend, services.NewRateLimiterCache(), calc, achievementService, metrics, log)

	sched, err := services.StartScheduler(sessions, spotterService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	limiter := middleware.NewRequestLimiter(cfg.RequestsPerMinute, cfg.RequestBurst)
	if _, err := sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(limiter.Sweep),
		gocron.WithName("limiter-sweep"),
	); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule limiter sweep")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: utils.MaxScreenshotBytes + 1024*1024,
	})

	// 🔐 Only gateway requests, except the liveness probe
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log, "/health"))

	allowedOrigins := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-User-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupSystemRoutes(app, db, registry, enterpriseService, log)

	// EventSource cannot send headers, so the stream authenticates by query token
	app.Get("/s/session/stream", middleware.SSEAuthMiddleware(backend, log), sessions.StreamStreakSSE)

	secured := app.Group("/s", middleware.UserContextMiddleware(log), limiter.Handler())
	handlers.SetupTrendRoutes(secured, submissionService, store, log)
	handlers.SetupValidationRoutes(secured, validationService, log)
	handlers.SetupSessionRoutes(secured, sessions, log)
	handlers.SetupEarningsRoutes(secured, earningsService, log)
	handlers.SetupSpotterRoutes(secured, spotterService, achievementService, log)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	handlers.SetupAdminEarningsRoutes(admin, earningsService, log)

	app.Static("/uploads", cfg.UploadDir)

	go workers.PollEnterpriseDashboard(ctx, enterpriseService, cfg.EnterprisePollInterval, log)
	workers.NewSpotterProfileSyncWorker(db, backend, cfg.ProfileSyncInterval, log).Start(ctx)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("✅ Server running")
	log.Info().Dur("interval", cfg.EnterprisePollInterval).Msg("✅ Enterprise dashboard polling running")
	log.Info().Msg("✅ GatewayAuthMiddleware enforced on every route but /health")
	log.Info().Strs("origins", allowedOrigins).Msg("✅ CORS configured")

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}
}

// newScreenshotStore uses R2 when credentials are configured, else the local
// upload directory.
func newScreenshotStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) utils.ScreenshotStore {
	if cfg.StorageAccountID != "" || cfg.StorageEndpoint != "" {
		store, err := utils.NewR2Store(ctx, utils.R2Config{
			AccountID:   cfg.StorageAccountID,
			Endpoint:    cfg.StorageEndpoint,
			AccessKeyID: cfg.StorageKeyID,
			SecretKey:   cfg.StorageSecret,
			Bucket:      cfg.StorageBucket,
			CDNBaseURL:  cfg.CDNBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize R2 client")
		}
		log.Info().Str("bucket", cfg.StorageBucket).Msg("🪣 Screenshots stored in R2")
		return store
	}

	store, err := utils.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to ensure upload dir")
	}
	log.Warn().Str("dir", cfg.UploadDir).Msg("⚠️  No storage credentials, screenshots stored on local disk")
	return store
}
