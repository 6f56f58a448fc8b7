package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/gmrl/auth-portal/config"
	"github.com/gmrl/auth-portal/internal/adapters/rediscache"
	"github.com/gmrl/auth-portal/internal/adapters/sweeper"
	"github.com/gmrl/auth-portal/internal/data"
	"github.com/gmrl/auth-portal/internal/service"
)

// ServiceDeps holds shared infrastructure for building the service container.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// ServiceContainer holds the constructed application services.
type ServiceContainer struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Stores  *service.StoreService
	Sweeper *service.SweeperService
}

// NewServices wires repositories, adapters, and services.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exchanger, directory, err := BuildAuthProviders(ctx, *cfg, logger)
	if err != nil {
		return nil, err
	}

	userRepo := data.NewUserRepo(deps.DB)
	sessionRepo := data.NewSessionRepo(deps.DB, cfg.Session.TTL)
	storeRepo := data.NewStoreRepo(deps.DB)
	auditRepo := data.NewAuditRepo(deps.DB)

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Exchanger: exchanger,
		Directory: directory,
		Users:     userRepo,
		Sessions:  sessionRepo,
		Audit:     auditRepo,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}

	userSvc, err := service.NewUserService(service.UserServiceOptions{
		Users:     userRepo,
		Directory: directory,
		Cache:     rediscache.NewDirectoryCache(deps.RedisClient, cfg.Cache.DirectoryTTL),
		Audit:     auditRepo,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build user service: %w", err)
	}

	storeSvc, err := service.NewStoreService(service.StoreServiceOptions{
		Stores: storeRepo,
		Audit:  auditRepo,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build store service: %w", err)
	}

	sweeperSvc, err := service.NewSweeperService(service.SweeperServiceOptions{
		Sessions: sessionRepo,
		Config:   cfg.Session,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build sweeper service: %w", err)
	}

	return &ServiceContainer{
		Auth:    authSvc,
		Users:   userSvc,
		Stores:  storeSvc,
		Sweeper: sweeperSvc,
	}, nil
}

// RunConfig groups dependencies for Run.
type RunConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// Run starts the HTTP server and the session sweeper and blocks until a
// termination signal or a fatal component failure.
func Run(ctx context.Context, cfg *RunConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: *cfg.Services,
		DB:       cfg.DB,
		Logger:   logger,
	})

	if cfg.Config.Session.SweepEnabled {
		runner, err := sweeper.NewRunner(sweeper.RunnerOptions{
			DB:     cfg.DB,
			Config: cfg.Config.Session,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("build sweeper runner: %w", err)
		}
		g.Go(func() error {
			return runner.Run(gctx)
		})
	} else {
		logger.Info("session sweeper disabled via config")
	}

	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(context.Background(), server, logger)
	})

	return g.Wait()
}
