package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gmrl/auth-portal/internal/data/pgxutil"
	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
)

// UserRepo provides database operations for the local user mirror.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with the real clock.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom clock (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

const userColumns = `
	id, azure_user_id, email, display_name, photo_url, job_title, department,
	role, assigned_stores, assigned_department, is_active, is_approved,
	created_at, updated_at, last_login`

const (
	userGetByIDQuery = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`

	userGetByEmailQuery = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`

	userListQuery = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC`
)

// GetByID retrieves a user by local identifier.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getByQuery(ctx, userGetByIDQuery, "failed to get user by id", id)
}

// GetByEmail retrieves a user by email, the unique natural key.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getByQuery(ctx, userGetByEmailQuery, "failed to get user by email", strings.ToLower(strings.TrimSpace(email)))
}

// List returns all users, newest first. The admin surface is small enough
// that pagination has not been needed.
func (r *UserRepo) List(ctx context.Context) ([]*model.User, error) {
	var rowsOut []model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, userListQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	res := make([]*model.User, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// InsertPending creates a first-login row with role Pending, active, and
// unapproved. Uniqueness of email is the storage layer's job: a concurrent
// insert for the same address surfaces ErrEmailExists rather than a second row.
func (r *UserRepo) InsertPending(ctx context.Context, profile domainauth.Profile) (*model.User, error) {
	if profile.Email == "" {
		return nil, errors.New("profile email is required")
	}

	now := r.timeProvider.Now().UTC()
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (
				azure_user_id, email, display_name, photo_url, job_title, department,
				role, is_active, is_approved, created_at, updated_at, last_login
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, TRUE, FALSE, $8, $8, $8
			) RETURNING `+userColumns,
			profile.AzureUserID,
			strings.ToLower(strings.TrimSpace(profile.Email)),
			profile.DisplayName,
			nullable(profile.PhotoURL),
			nullable(profile.JobTitle),
			nullable(profile.Department),
			domainauth.RolePending,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// UpdateOnLogin refreshes the directory-sourced fields and last_login for an
// existing user. Role, approval, and active status are never touched here.
func (r *UserRepo) UpdateOnLogin(ctx context.Context, id int64, profile domainauth.Profile) (*model.User, error) {
	now := r.timeProvider.Now().UTC()
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE users
			SET azure_user_id = $2,
			    display_name = $3,
			    photo_url = $4,
			    job_title = $5,
			    department = $6,
			    last_login = $7,
			    updated_at = $7
			WHERE id = $1
			RETURNING `+userColumns,
			id,
			profile.AzureUserID,
			profile.DisplayName,
			nullable(profile.PhotoURL),
			nullable(profile.JobTitle),
			nullable(profile.Department),
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// Update applies administrator edits. A role change to anything other than
// Pending implies approval and activation regardless of the other fields in
// the request.
func (r *UserRepo) Update(ctx context.Context, id int64, req model.UpdateUserRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setClause, args := r.buildUpdateClause(req)
	if setClause == "" {
		return r.GetByID(ctx, id)
	}

	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		args = append(args, id)
		query := "UPDATE users SET " + setClause +
			fmt.Sprintf(", updated_at = now() WHERE id = $%d RETURNING ", len(args)) + userColumns
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// UpdateRole assigns a role. Assigning any real (non-Pending) role approves
// and activates the user in the same statement.
func (r *UserRepo) UpdateRole(ctx context.Context, id int64, role domainauth.Role) (*model.User, error) {
	if _, err := domainauth.ParseRole(string(role)); err != nil {
		return nil, err
	}

	approved := !role.IsPending()
	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			UPDATE users
			SET role = $2, is_approved = $3, is_active = $3, updated_at = now()
			WHERE id = $1
			RETURNING `+userColumns, id, role, approved)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// UpdateStatus flips the active flag. Deactivation invalidates every live
// session for the user at lookup time without touching session rows.
func (r *UserRepo) UpdateStatus(ctx context.Context, id int64, active bool) (*model.User, error) {
	var out model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			UPDATE users
			SET is_active = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+userColumns, id, active)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// UpsertDirectoryUser backs the admin directory sync. Unseen emails become
// Pending rows; seen ones get display name and azure id refreshed.
func (r *UserRepo) UpsertDirectoryUser(ctx context.Context, du model.DirectoryUser) (bool, error) {
	if du.Email == "" {
		return false, errors.New("directory user email is required")
	}

	now := r.timeProvider.Now().UTC()
	var created bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, `
			INSERT INTO users (
				azure_user_id, email, display_name, job_title, department,
				role, is_active, is_approved, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, $7, $7)
			ON CONFLICT (email) DO UPDATE
			SET azure_user_id = EXCLUDED.azure_user_id,
			    display_name = EXCLUDED.display_name,
			    updated_at = EXCLUDED.updated_at
			RETURNING (xmax = 0)`,
			du.AzureUserID,
			strings.ToLower(strings.TrimSpace(du.Email)),
			du.DisplayName,
			nullable(du.JobTitle),
			nullable(du.Department),
			domainauth.RolePending,
			now,
		)
		return row.Scan(&created)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert directory user: %w", err)
	}
	return created, nil
}

// --- helpers ---

func (r *UserRepo) buildUpdateClause(req model.UpdateUserRequest) (string, []any) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 8)
	nextIdx := func() int { return len(args) + 1 }

	// Assigning a real role implies approval and activation, overriding any
	// explicit flags in the same request. Postgres also rejects a SET clause
	// naming the same column twice.
	roleImpliesApproval := req.Role != nil && !req.Role.IsPending()

	if req.Role != nil {
		setParts = append(setParts, fmt.Sprintf("role = $%d", nextIdx()))
		args = append(args, *req.Role)
		if roleImpliesApproval {
			setParts = append(setParts, "is_approved = TRUE", "is_active = TRUE")
		}
	}
	if req.DisplayName != nil {
		setParts = append(setParts, fmt.Sprintf("display_name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.DisplayName))
	}
	if req.IsApproved != nil && !roleImpliesApproval {
		setParts = append(setParts, fmt.Sprintf("is_approved = $%d", nextIdx()))
		args = append(args, *req.IsApproved)
	}
	if req.IsActive != nil && !roleImpliesApproval {
		setParts = append(setParts, fmt.Sprintf("is_active = $%d", nextIdx()))
		args = append(args, *req.IsActive)
	}
	if req.AssignedStores != nil {
		encoded, err := json.Marshal(req.AssignedStores)
		if err == nil {
			setParts = append(setParts, fmt.Sprintf("assigned_stores = $%d", nextIdx()))
			args = append(args, string(encoded))
		}
	}
	if req.AssignedDepartment != nil {
		setParts = append(setParts, fmt.Sprintf("assigned_department = $%d", nextIdx()))
		args = append(args, *req.AssignedDepartment)
	}

	if len(setParts) == 0 {
		return "", nil
	}
	return strings.Join(setParts, ", "), args
}

func (r *UserRepo) getByQuery(ctx context.Context, q, errMsg string, args ...any) (*model.User, error) {
	var user model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		user, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &user, nil
}

func (r *UserRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrEmailExists
	}
	return err
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
