package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gmrl/auth-portal/internal/data"
	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/ports"
)

// tokenCreateAttempts bounds retries on a session-token primary-key collision.
const tokenCreateAttempts = 3

// touchTimeout bounds the detached last-activity write so it can't hold a
// connection past the originating request.
const touchTimeout = 5 * time.Second

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Exchanger ports.TokenExchanger
	Directory ports.DirectoryClient
	Users     ports.UserRepository
	Sessions  ports.SessionRepository
	Audit     ports.AuditRecorder // Optional
	Logger    *slog.Logger        // Optional
}

// AuthService orchestrates the login flow: code exchange, identity
// resolution, local user reconciliation, and session issuance.
type AuthService struct {
	exchanger ports.TokenExchanger
	directory ports.DirectoryClient
	users     ports.UserRepository
	sessions  ports.SessionRepository
	audit     ports.AuditRecorder
	logger    *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Exchanger == nil {
		return nil, errors.New("TokenExchanger is required")
	}
	if opts.Directory == nil {
		return nil, errors.New("DirectoryClient is required")
	}
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionRepository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		exchanger: opts.Exchanger,
		directory: opts.Directory,
		users:     opts.Users,
		sessions:  opts.Sessions,
		audit:     opts.Audit,
		logger:    logger.With("component", "auth_service"),
	}, nil
}

// BeginLogin returns the provider authorize URL carrying the opaque state.
func (s *AuthService) BeginLogin(state string) string {
	return s.exchanger.AuthCodeURL(state)
}

// CompleteLoginResult is the outcome of a finished code exchange.
type CompleteLoginResult struct {
	User    *model.User
	Session *model.Session
}

// CompleteLogin finishes the OAuth2 flow: trades the code for tokens,
// resolves the identity against the directory, reconciles the local user row,
// and issues a session. Exchange and directory failures come back typed
// (*domainauth.TokenExchangeError, *domainauth.ProfileFetchError) for the
// handler to translate.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*CompleteLoginResult, error) {
	if code == "" {
		return nil, &domainauth.TokenExchangeError{Err: errors.New("authorization code is required")}
	}

	tokens, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := s.directory.Me(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.reconcileUser(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("reconcile user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID, tokens)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.recordAudit(ctx, user.ID, model.AuditActionLogin, nil)

	return &CompleteLoginResult{User: user, Session: session}, nil
}

// reconcileUser maps a directory profile onto the local user table. A first
// login inserts a Pending row; a repeat login refreshes the directory-sourced
// fields and last_login while leaving role and status alone. A lost insert
// race surfaces as ErrEmailExists and resolves by re-reading the winner's row.
func (s *AuthService) reconcileUser(ctx context.Context, profile domainauth.Profile) (*model.User, error) {
	existing, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		return s.users.UpdateOnLogin(ctx, existing.ID, profile)
	case errors.Is(err, data.ErrUserNotFound):
		created, insertErr := s.users.InsertPending(ctx, profile)
		if insertErr == nil {
			s.logger.InfoContext(ctx, "created pending user", "email", profile.Email)
			return created, nil
		}
		if errors.Is(insertErr, data.ErrEmailExists) {
			// Concurrent first login won the insert; update their row.
			winner, readErr := s.users.GetByEmail(ctx, profile.Email)
			if readErr != nil {
				return nil, readErr
			}
			return s.users.UpdateOnLogin(ctx, winner.ID, profile)
		}
		return nil, insertErr
	default:
		return nil, err
	}
}

// createSession issues a session, retrying on the vanishingly rare token
// collision.
func (s *AuthService) createSession(ctx context.Context, userID int64, tokens domainauth.Tokens) (*model.Session, error) {
	var lastErr error
	for attempt := 0; attempt < tokenCreateAttempts; attempt++ {
		session, err := s.sessions.Create(ctx, userID, tokens)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, data.ErrTokenCollision) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// GetSession resolves a cookie value to an authenticated principal, or nil
// when the token is malformed, unknown, expired, or belongs to a deactivated
// user. A hit refreshes last_activity in the background.
func (s *AuthService) GetSession(ctx context.Context, token string) (*domainauth.Principal, error) {
	if !domainauth.IsValidSessionToken(token) {
		return nil, nil
	}

	row, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	// Touch off the request path: the principal is already resolved and a
	// stale last_activity costs nothing.
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if touchErr := s.sessions.Touch(touchCtx, token); touchErr != nil {
			s.logger.Warn("session touch failed", "error", touchErr)
		}
	}()

	return principalFromRow(row), nil
}

// Logout destroys the session. Idempotent: an unknown or malformed token is
// a successful logout.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if !domainauth.IsValidSessionToken(token) {
		return nil
	}

	// Resolve the owner first so the audit entry has a user; a miss still
	// proceeds to the (no-op) delete.
	if row, lookErr := s.sessions.Lookup(ctx, token); lookErr == nil && row != nil {
		s.recordAudit(ctx, row.User.ID, model.AuditActionLogout, nil)
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DefaultRouteForRole maps a role to its post-login landing page. An
// unrecognized role on a stored row lands on the pending page rather than a
// privileged view.
func (s *AuthService) DefaultRouteForRole(role domainauth.Role) string {
	switch role {
	case domainauth.RolePending:
		return "/auth/pending"
	case domainauth.RoleAuditor:
		return "/auditor/select"
	case domainauth.RoleAdmin, domainauth.RoleStoreManager,
		domainauth.RoleCleaningHead, domainauth.RoleProcurementHead,
		domainauth.RoleMaintenanceHead:
		return "/dashboard"
	default:
		s.logger.Warn("unrecognized role on stored user, routing to pending", "role", role)
		return "/auth/pending"
	}
}

func (s *AuthService) recordAudit(ctx context.Context, userID int64, action string, detail *string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, model.AuditEntry{
		UserID: userID,
		Action: action,
		Detail: detail,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", "action", action, "error", err)
	}
}

// principalFromRow builds the request principal from a joined session row.
func principalFromRow(row *model.SessionWithUser) *domainauth.Principal {
	u := row.User
	return &domainauth.Principal{
		UserID:             u.ID,
		AzureUserID:        u.AzureUserID,
		Email:              u.Email,
		DisplayName:        u.DisplayName,
		PhotoURL:           deref(u.PhotoURL),
		JobTitle:           deref(u.JobTitle),
		Department:         deref(u.Department),
		Role:               u.Role,
		AssignedStores:     u.StoreCodes(),
		AssignedDepartment: deref(u.AssignedDepartment),
		IsActive:           u.IsActive,
		IsApproved:         u.IsApproved,
		AccessToken:        row.Session.AzureAccessToken,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
