package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/gmrl/auth-portal/config"
	"github.com/gmrl/auth-portal/internal/ports"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Sessions ports.SessionRepository // Required
	Config   config.SessionConfig    // Required
	Logger   *slog.Logger            // Optional
}

// SweeperService purges expired sessions on a fixed interval. Expiry itself
// is enforced at lookup time; the sweep only reclaims storage, so a missed
// run never extends a session's life.
type SweeperService struct {
	sessions ports.SessionRepository
	config   config.SessionConfig
	logger   *slog.Logger
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "session_sweeper")
	}

	return &SweeperService{
		sessions: opts.Sessions,
		config:   opts.Config,
		logger:   logger,
	}, nil
}

// Run sweeps once immediately, then at every interval until the context is
// cancelled. Returns nil on graceful shutdown (context.Canceled).
func (s *SweeperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting session sweeper", "interval", s.config.SweepInterval)
	}

	// The first sweep runs right away; only the ticker phase is jittered so
	// multiple instances starting together don't sweep in lockstep.
	s.sweepOnce(ctx)
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "session sweeper stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// SweepNow runs a single sweep and returns the removed count. Exposed for the
// admin surface and tests.
func (s *SweeperService) SweepNow(ctx context.Context) (int64, error) {
	return s.sessions.Sweep(ctx)
}

// sweepOnce runs one sweep; failures are logged and the loop keeps going.
func (s *SweeperService) sweepOnce(ctx context.Context) {
	removed, err := s.sessions.Sweep(ctx)
	if err != nil {
		if isContextCancellation(err) {
			return
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
		}
		return
	}
	if removed > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "swept expired sessions", "count", removed)
	}
}

// waitWithJitter delays up to 10% of the interval.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.SweepInterval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		return
	}
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)

	select {
	case <-time.After(time.Duration(int64(jitterNanos))):
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
