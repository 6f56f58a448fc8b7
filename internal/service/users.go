package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/ports"
)

// UserServiceOptions groups dependencies for UserService.
type UserServiceOptions struct {
	Users     ports.UserRepository
	Directory ports.DirectoryClient
	Cache     ports.DirectoryCache // Optional
	Audit     ports.AuditRecorder  // Optional
	Logger    *slog.Logger         // Optional
}

// UserService backs the admin user-management surface: listing, approval,
// role assignment, and directory synchronization.
type UserService struct {
	users     ports.UserRepository
	directory ports.DirectoryClient
	cache     ports.DirectoryCache
	audit     ports.AuditRecorder
	logger    *slog.Logger
}

// NewUserService constructs a new UserService.
func NewUserService(opts UserServiceOptions) (*UserService, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Directory == nil {
		return nil, errors.New("DirectoryClient is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &UserService{
		users:     opts.Users,
		directory: opts.Directory,
		cache:     opts.Cache,
		audit:     opts.Audit,
		logger:    logger.With("component", "user_service"),
	}, nil
}

// List returns all local users.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	return s.users.List(ctx)
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// Update applies administrator edits to a user.
func (s *UserService) Update(ctx context.Context, actorID, id int64, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.users.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, model.AuditActionUpdateUser, auditDetail("user %d updated", id))
	return user, nil
}

// AssignRole moves a user onto a real role, approving and activating them.
// Assigning Pending is rejected; use Reject to take access away.
func (s *UserService) AssignRole(ctx context.Context, actorID, id int64, role domainauth.Role) (*model.User, error) {
	if role.IsPending() {
		return nil, errors.New("cannot assign the Pending role; reject the user instead")
	}
	user, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, model.AuditActionUpdateRole, auditDetail("user %d role set to %s", id, role))
	return user, nil
}

// Reject takes a user out of circulation: unapproved and inactive. Their
// live sessions stop resolving immediately via the lookup's active filter.
func (s *UserService) Reject(ctx context.Context, actorID, id int64) (*model.User, error) {
	falsePtr := false
	user, err := s.users.Update(ctx, id, model.UpdateUserRequest{
		IsApproved: &falsePtr,
		IsActive:   &falsePtr,
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, model.AuditActionDeactivateUser, auditDetail("user %d rejected", id))
	return user, nil
}

// SetActive flips a user's active flag.
func (s *UserService) SetActive(ctx context.Context, actorID, id int64, active bool) (*model.User, error) {
	user, err := s.users.UpdateStatus(ctx, id, active)
	if err != nil {
		return nil, err
	}
	action := model.AuditActionDeactivateUser
	if active {
		action = model.AuditActionActivateUser
	}
	s.recordAudit(ctx, actorID, action, auditDetail("user %d active=%t", id, active))
	return user, nil
}

// SyncResult reports the outcome of a directory synchronization.
type SyncResult struct {
	Total     int  `json:"total"`
	Created   int  `json:"created"`
	Updated   int  `json:"updated"`
	FromCache bool `json:"from_cache"`
}

// SyncDirectory pulls the tenant directory (through the cache when warm) and
// upserts every entry into the local user table. New entries arrive Pending.
func (s *UserService) SyncDirectory(ctx context.Context, actorID int64, accessToken string, force bool) (*SyncResult, error) {
	listing, fromCache, err := s.directoryListing(ctx, accessToken, force)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Total: len(listing), FromCache: fromCache}
	for _, du := range listing {
		created, upsertErr := s.users.UpsertDirectoryUser(ctx, du)
		if upsertErr != nil {
			s.logger.WarnContext(ctx, "directory upsert failed", "email", du.Email, "error", upsertErr)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	s.recordAudit(ctx, actorID, model.AuditActionSyncDirectory,
		auditDetail("synced %d directory entries (%d new)", res.Total, res.Created))
	return res, nil
}

func (s *UserService) directoryListing(ctx context.Context, accessToken string, force bool) ([]model.DirectoryUser, bool, error) {
	if s.cache != nil && !force {
		cached, ok, cacheErr := s.cache.Get(ctx)
		if cacheErr != nil {
			s.logger.WarnContext(ctx, "directory cache read failed", "error", cacheErr)
		} else if ok {
			return cached, true, nil
		}
	}

	listing, err := s.directory.ListUsers(ctx, accessToken)
	if err != nil {
		return nil, false, fmt.Errorf("fetch directory listing: %w", err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, listing); cacheErr != nil {
			s.logger.WarnContext(ctx, "directory cache write failed", "error", cacheErr)
		}
	}
	return listing, false, nil
}

func (s *UserService) recordAudit(ctx context.Context, actorID int64, action string, detail *string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, model.AuditEntry{
		UserID: actorID,
		Action: action,
		Detail: detail,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", "action", action, "error", err)
	}
}

func auditDetail(format string, args ...any) *string {
	s := fmt.Sprintf(format, args...)
	return &s
}
