// Package sweeper provides an adapter for running the session sweeper loop.
package sweeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gmrl/auth-portal/config"
	"github.com/gmrl/auth-portal/internal/data"
	"github.com/gmrl/auth-portal/internal/ports"
	"github.com/gmrl/auth-portal/internal/service"
)

// Runner constructs the sweeper service and runs the purge loop.
type Runner struct {
	sweeper *service.SweeperService
	logger  *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.SessionConfig
	Logger *slog.Logger

	// Optional repository injection for testing.
	Sessions ports.SessionRepository
}

// NewRunner creates a sweeper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Sessions == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	sessions := opts.Sessions
	if sessions == nil {
		sessions = data.NewSessionRepo(opts.DB, opts.Config.TTL)
	}

	svc, err := service.NewSweeperService(service.SweeperServiceOptions{
		Sessions: sessions,
		Config:   opts.Config,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire sweeper service: %w", err)
	}

	return &Runner{sweeper: svc, logger: opts.Logger}, nil
}

// Run starts the sweeper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting sweeper runner")
	return r.sweeper.Run(ctx)
}
