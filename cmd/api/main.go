package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/problem-desk/internal/api/http"
	"github.com/spec-kit/problem-desk/internal/api/http/handlers"
	"github.com/spec-kit/problem-desk/internal/auth"
	"github.com/spec-kit/problem-desk/internal/config"
	"github.com/spec-kit/problem-desk/internal/events"
	"github.com/spec-kit/problem-desk/internal/observability"
	"github.com/spec-kit/problem-desk/internal/persistence"
	"github.com/spec-kit/problem-desk/internal/repository"
	"github.com/spec-kit/problem-desk/internal/service"
	"github.com/spec-kit/problem-desk/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(*cfg, store.Users())
	directoryService := service.NewDirectoryService(store, cfg.Auth.BcryptCost)
	problemService := service.NewProblemService(service.ProblemDependencies{
		Store:      store,
		Dispatcher: dispatcher,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Store:      store,
		Dispatcher: dispatcher,
	})
	notificationService := service.NewNotificationService(store, dispatcher, logger, redis.Client)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users())

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(),
		Users:           handlers.NewUsersHandler(authService, directoryService),
		Problems:        handlers.NewProblemsHandler(problemService, assignmentService),
		Notifications:   handlers.NewNotificationsHandler(notificationService),
		AssignmentRules: handlers.NewAssignmentRulesHandler(assignmentService),
		AuthMiddleware:  authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
