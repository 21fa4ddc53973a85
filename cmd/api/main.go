package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hms-api/internal/config"
	"github.com/noah-isme/hms-api/internal/database"
	"github.com/noah-isme/hms-api/internal/events"
	"github.com/noah-isme/hms-api/internal/handler"
	"github.com/noah-isme/hms-api/internal/middleware"
	"github.com/noah-isme/hms-api/internal/repository"
	"github.com/noah-isme/hms-api/internal/router"
	"github.com/noah-isme/hms-api/internal/service"
	cloud "github.com/noah-isme/hms-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, cfg.AppEnv == "development")
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient == nil {
		logger.Warn().Msg("redis disabled: admission lock and leaderboard cache are off")
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	var archiver service.FileArchiver
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		archiver = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	sessionService := service.NewSessionService(sessionRepo, redisClient, service.SessionServiceOptions{
		DeviceScope: cfg.SessionDeviceScope,
		LockTTL:     cfg.AdmissionLockTTL,
	}, activityService, logger)
	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, sessionService, tokens, validate, logger)
	leaderboardService := service.NewLeaderboardService(gradeRepo, userRepo, validate, redisClient, cfg.LeaderboardCacheTTL, logger)
	publisher := events.NewNATSPublisher(natsConn, cfg.EventSubjectBase, logger, leaderboardService.HandleGradeEvent)
	groupService := service.NewGroupService(userRepo, logger)
	homeworkService := service.NewHomeworkService(homeworkRepo, userRepo, validate, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, homeworkRepo, userRepo, validate, archiver, logger)
	gradingService := service.NewGradingService(gradeRepo, submissionRepo, validate, activityService, publisher, logger)
	exportService := service.NewExportService(userRepo, gradeRepo, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    cfg.MaxUploadBytes * 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		Logger:             logger,
		AuthHandler:        handler.NewAuthHandler(authService, logger),
		SessionHandler:     handler.NewSessionHandler(sessionService, logger),
		GroupHandler:       handler.NewGroupHandler(groupService, logger),
		HomeworkHandler:    handler.NewHomeworkHandler(homeworkService, logger),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService, cfg.MaxUploadBytes, logger),
		GradingHandler:     handler.NewGradingHandler(gradingService, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboardService, logger),
		ExportHandler:      handler.NewExportHandler(exportService, logger),
		ActivityHandler:    handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		LoginRateLimiter:   middleware.RateLimit("login", cfg.LoginRateLimit, cfg.LoginRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("server started")
	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
