package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/civic-issue-service/internal/api/http"
	"github.com/spec-kit/civic-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/observability"
	"github.com/spec-kit/civic-issue-service/internal/persistence"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
	"github.com/spec-kit/civic-issue-service/internal/worker"
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

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisStore := persistence.NewRedis(cfg.Redis, logger)
	defer redisStore.Close()
	redisClient := redisStore.Client

	var (
		issueRepo     repository.IssueRepository
		authorityRepo repository.AuthorityRepository
		ledgerRepo    repository.ContributionRepository
		userRepo      repository.UserRepository
		resetRepo     repository.PasswordResetRepository
	)
	if pool != nil {
		issueRepo = repository.NewIssueRepository(pool)
		authorityRepo = repository.NewAuthorityRepository(pool)
		ledgerRepo = repository.NewContributionRepository(pool)
		userRepo = repository.NewUserRepository(pool)
		resetRepo = repository.NewPasswordResetRepository(pool)
	} else {
		logger.Warn("running on in-memory repositories; data is not persisted")
		issueRepo = repository.NewMemoryIssueRepository()
		authorityRepo = repository.NewMemoryAuthorityRepository()
		ledgerRepo = repository.NewMemoryContributionRepository()
		userRepo = repository.NewMemoryUserRepository()
		resetRepo = repository.NewMemoryPasswordResetRepository()
	}

	dispatcher := events.NewInMemoryDispatcher(func(event events.Event, err error) {
		logger.Error("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	})

	ledgerService := service.NewLedgerService(ledgerRepo, logger)
	leaderboardService := service.NewLeaderboardService(ledgerRepo, issueRepo, redisClient, logger)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		IssueRepo:     issueRepo,
		AuthorityRepo: authorityRepo,
		Logger:        logger,
	})
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:     issueRepo,
		AuthorityRepo: authorityRepo,
		Ledger:        ledgerService,
		Resolver:      assignmentService,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	var snapshotWorker *worker.SnapshotWorker
	if cfg.Snapshot.Enabled {
		snapshotWorker = worker.NewSnapshotWorker(leaderboardService, redisClient, logger, cfg.Snapshot.Interval())
		snapshotWorker.Start()
	}

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisStore)
	usersHandler := handlers.NewUsersHandler(authService)
	issuesHandler := handlers.NewIssuesHandler(issueService)
	authoritiesHandler := handlers.NewAuthoritiesHandler(assignmentService, issueService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          healthHandler,
		Users:           usersHandler,
		Issues:          issuesHandler,
		Authorities:     authoritiesHandler,
		Leaderboard:     leaderboardHandler,
		AuthMiddleware:  authMiddleware,
		SubmissionLimit: httptransport.SubmissionRateLimiter(redisClient, cfg.RateLimit.SubmissionsPerDay, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if snapshotWorker != nil {
		snapshotWorker.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
