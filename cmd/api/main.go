package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/civicpulse/hub/internal/api/http"
	"github.com/civicpulse/hub/internal/api/http/handlers"
	"github.com/civicpulse/hub/internal/auth"
	"github.com/civicpulse/hub/internal/config"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/lock"
	"github.com/civicpulse/hub/internal/observability"
	"github.com/civicpulse/hub/internal/persistence"
	"github.com/civicpulse/hub/internal/queue"
	"github.com/civicpulse/hub/internal/repository"
	"github.com/civicpulse/hub/internal/service"
	"github.com/civicpulse/hub/internal/storage"
	"github.com/civicpulse/hub/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.Pool != nil {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var locker lock.Locker
	if redis.Enabled() {
		locker = lock.NewRedisLocker(redis.Client, cfg.Redis.LockTTL())
	} else {
		logger.Warn("REDIS_ADDR not provided; complaint locks are process-local")
		locker = lock.NewLocalLocker(cfg.Redis.LockTTL())
	}

	var store storage.Store
	if cfg.Storage.Endpoint != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal("failed to init object storage", zap.Error(err))
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Fatal("failed to prepare image bucket", zap.Error(err), zap.String("bucket", cfg.Storage.Bucket))
		}
		store = objectStore
	} else {
		logger.Warn("STORAGE_ENDPOINT not provided; images are kept in memory")
		store = storage.NewMemoryStore()
	}
	images := storage.NewImages(store)

	var publisher queue.Publisher = queue.NoopPublisher{}
	if cfg.RabbitMQ.URI != "" {
		rabbit, err := queue.NewRabbitPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Queue)
		if err != nil {
			logger.Error("rabbitmq unavailable; lifecycle events stay local", zap.Error(err))
		} else {
			publisher = rabbit
		}
	}
	defer publisher.Close() //nolint:errcheck

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.Pool
	userRepo := repository.NewUserRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	workerRepo := repository.NewWorkerRepository(pool)
	complaintRepo := repository.NewComplaintRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)
	historyRepo := repository.NewComplaintHistoryRepository(pool)

	core := service.CoreDependencies{
		ComplaintRepo: complaintRepo,
		HistoryRepo:   historyRepo,
		Locker:        locker,
		Dispatcher:    dispatcher,
		Logger:        logger,
	}
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:       userRepo,
		AdminRepo:      adminRepo,
		DepartmentRepo: departmentRepo,
	})
	complaintService := service.NewComplaintService(service.ComplaintDependencies{CoreDependencies: core, Images: images})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		CoreDependencies: core,
		DepartmentRepo:   departmentRepo,
		FeedbackRepo:     feedbackRepo,
	})
	departmentService := service.NewDepartmentService(service.DepartmentDependencies{
		CoreDependencies: core,
		DepartmentRepo:   departmentRepo,
		WorkerRepo:       workerRepo,
		Images:           images,
	})
	feedbackService := service.NewFeedbackService(service.FeedbackDependencies{CoreDependencies: core, FeedbackRepo: feedbackRepo})
	notificationService := service.NewNotificationService(dispatcher, publisher, metrics, logger)

	background, err := worker.Start(cfg.Scheduler, notificationService, complaintService, metrics, logger)
	if err != nil {
		logger.Fatal("failed to start background jobs", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, adminRepo, departmentRepo)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimit(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:      cfg.App.RequestTimeout(),
		AllowOrigins: cfg.App.AllowOrigins,
	})

	readiness := map[string]handlers.Pinger{
		"postgres": pg,
		"storage":  images,
	}
	if redis.Enabled() {
		readiness["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Users:          handlers.NewUsersHandler(authService, complaintService, feedbackService),
		Admin:          handlers.NewAdminHandler(authService, complaintService, assignmentService, feedbackService),
		Departments:    handlers.NewDepartmentHandler(authService, departmentService, complaintService, assignmentService),
		Files:          handlers.NewFilesHandler(images),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	background.Stop(shutdownCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
