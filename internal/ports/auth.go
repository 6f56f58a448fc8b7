package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration in
// internal/service.

import (
	"context"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
)

// TokenExchanger trades an authorization code for provider tokens.
type TokenExchanger interface {
	// AuthCodeURL builds the provider authorize URL carrying the given
	// opaque state (browser redirect only; never called server-to-server).
	AuthCodeURL(state string) string

	// Exchange completes the code flow. Provider rejection or timeout is
	// returned as *domainauth.TokenExchangeError.
	Exchange(ctx context.Context, code string) (domainauth.Tokens, error)
}

// DirectoryClient reads the external user directory with a delegated token.
type DirectoryClient interface {
	// Me fetches the authenticated principal's profile. Missing email or an
	// unauthorized call is returned as *domainauth.ProfileFetchError.
	Me(ctx context.Context, accessToken string) (domainauth.Profile, error)

	// ListUsers pages through the tenant directory for the admin sync.
	ListUsers(ctx context.Context, accessToken string) ([]model.DirectoryUser, error)
}

// UserRepository persists the local mirror of directory principals.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)

	// InsertPending creates a first-login row (role Pending, active,
	// unapproved, last_login now). A concurrent insert for the same email
	// surfaces data.ErrEmailExists for the caller to re-read.
	InsertPending(ctx context.Context, profile domainauth.Profile) (*model.User, error)

	// UpdateOnLogin refreshes the directory-sourced fields and last_login.
	// Role, approval, and active status are deliberately untouched.
	UpdateOnLogin(ctx context.Context, id int64, profile domainauth.Profile) (*model.User, error)

	Update(ctx context.Context, id int64, req model.UpdateUserRequest) (*model.User, error)

	// UpdateRole assigns a role; any non-Pending role also sets
	// is_approved and is_active true.
	UpdateRole(ctx context.Context, id int64, role domainauth.Role) (*model.User, error)

	UpdateStatus(ctx context.Context, id int64, active bool) (*model.User, error)

	// UpsertDirectoryUser backs the admin directory sync: unseen emails are
	// inserted as Pending, seen ones get display name and azure id
	// refreshed. Reports whether a new row was created.
	UpsertDirectoryUser(ctx context.Context, du model.DirectoryUser) (created bool, err error)
}

// SessionRepository owns session persistence. Nobody else writes sessions.
type SessionRepository interface {
	// Create issues a fresh 64-hex-char token expiring 24h out. A duplicate
	// token surfaces data.ErrTokenCollision; callers retry generation.
	Create(ctx context.Context, userID int64, tokens domainauth.Tokens) (*model.Session, error)

	// Lookup returns the session joined with its user when the token exists,
	// is unexpired, and the user is active; nil otherwise. The three failure
	// modes are indistinguishable to callers.
	Lookup(ctx context.Context, token string) (*model.SessionWithUser, error)

	// Touch refreshes last_activity. Best-effort at call sites.
	Touch(ctx context.Context, token string) error

	// Delete removes the session; deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// Sweep removes all expired sessions and returns the count.
	Sweep(ctx context.Context) (int64, error)
}

// DirectoryCache caches tenant directory listings between admin syncs.
type DirectoryCache interface {
	// Get returns the cached listing and whether one was present.
	Get(ctx context.Context) ([]model.DirectoryUser, bool, error)
	Set(ctx context.Context, users []model.DirectoryUser) error
	Invalidate(ctx context.Context) error
}

// AuditRecorder appends best-effort activity records.
type AuditRecorder interface {
	Record(ctx context.Context, entry model.AuditEntry) error
}
