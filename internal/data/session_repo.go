package data

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gmrl/auth-portal/internal/data/pgxutil"
	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
)

// SessionRepo persists browser sessions in Postgres. The session token is the
// primary key; validity is decided at lookup time by joining the owning user.
type SessionRepo struct {
	DB           *sql.DB
	ttl          time.Duration
	timeProvider TimeProvider
}

// NewSessionRepo creates a SessionRepo issuing sessions with the given lifetime.
func NewSessionRepo(db *sql.DB, ttl time.Duration) *SessionRepo {
	return &SessionRepo{DB: db, ttl: ttl, timeProvider: &RealTimeProvider{}}
}

// NewSessionRepoWithTimeProvider creates a SessionRepo with a custom clock
// (useful for expiry-window tests).
func NewSessionRepoWithTimeProvider(db *sql.DB, ttl time.Duration, tp TimeProvider) *SessionRepo {
	return &SessionRepo{DB: db, ttl: ttl, timeProvider: tp}
}

// Create inserts a fresh session for the user. The token is 32 bytes of
// crypto/rand hex-encoded, so guessing one is infeasible; a primary-key
// collision (astronomically unlikely, but cheap to handle) surfaces
// ErrTokenCollision for the caller to retry with a new token.
func (r *SessionRepo) Create(ctx context.Context, userID int64, tokens domainauth.Tokens) (*model.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := r.timeProvider.Now().UTC()
	session := &model.Session{
		Token:             token,
		UserID:            userID,
		AzureAccessToken:  tokens.AccessToken,
		AzureRefreshToken: nullable(tokens.RefreshToken),
		CreatedAt:         now,
		ExpiresAt:         now.Add(r.ttl),
		LastActivity:      now,
	}

	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			INSERT INTO sessions (
				session_token, user_id, azure_access_token, azure_refresh_token,
				created_at, expires_at, last_activity
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			session.Token,
			session.UserID,
			session.AzureAccessToken,
			session.AzureRefreshToken,
			session.CreatedAt,
			session.ExpiresAt,
			session.LastActivity,
		)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrTokenCollision
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

const sessionLookupQuery = `
	SELECT
		s.session_token, s.user_id, s.azure_access_token, s.azure_refresh_token,
		s.created_at, s.expires_at, s.last_activity,
		u.id, u.azure_user_id, u.email, u.display_name, u.photo_url, u.job_title,
		u.department, u.role, u.assigned_stores, u.assigned_department,
		u.is_active, u.is_approved, u.created_at, u.updated_at, u.last_login
	FROM sessions s
	JOIN users u ON u.id = s.user_id
	WHERE s.session_token = $1
	  AND s.expires_at > $2
	  AND u.is_active = TRUE`

// Lookup resolves a token to its session and owning user in one round trip.
// An unknown token, an expired session, and a deactivated user all return
// (nil, nil): callers cannot and must not distinguish them.
func (r *SessionRepo) Lookup(ctx context.Context, token string) (*model.SessionWithUser, error) {
	if !domainauth.IsValidSessionToken(token) {
		return nil, nil
	}

	var out model.SessionWithUser
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, sessionLookupQuery, token, r.timeProvider.Now().UTC())
		s := &out.Session
		u := &out.User
		return row.Scan(
			&s.Token, &s.UserID, &s.AzureAccessToken, &s.AzureRefreshToken,
			&s.CreatedAt, &s.ExpiresAt, &s.LastActivity,
			&u.ID, &u.AzureUserID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.JobTitle,
			&u.Department, &u.Role, &u.AssignedStores, &u.AssignedDepartment,
			&u.IsActive, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return &out, nil
}

// Touch moves last_activity forward. A vanished token is not an error; the
// session was valid moments ago and is being cleaned up concurrently.
func (r *SessionRepo) Touch(ctx context.Context, token string) error {
	if !domainauth.IsValidSessionToken(token) {
		return nil
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx,
			`UPDATE sessions SET last_activity = $2 WHERE session_token = $1`,
			token, r.timeProvider.Now().UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Delete removes the session row. Idempotent: deleting an absent or malformed
// token succeeds, so logout can never fail for the browser.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	if !domainauth.IsValidSessionToken(token) {
		return nil
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx,
			`DELETE FROM sessions WHERE session_token = $1`, token)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep deletes every session past its expiry and reports how many went.
// Unexpired sessions are never touched, even for deactivated users; those
// stay invisible through the Lookup filter until they age out.
func (r *SessionRepo) Sweep(ctx context.Context) (int64, error) {
	var removed int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx,
			`DELETE FROM sessions WHERE expires_at <= $1`,
			r.timeProvider.Now().UTC())
		if execErr != nil {
			return execErr
		}
		removed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return removed, nil
}

// generateSessionToken returns 32 bytes of cryptographic randomness as 64
// lowercase hex characters.
func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
