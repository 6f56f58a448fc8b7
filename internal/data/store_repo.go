package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gmrl/auth-portal/internal/data/pgxutil"
	"github.com/gmrl/auth-portal/internal/domain/model"
)

// StoreRepo provides database operations for retail stores.
type StoreRepo struct {
	DB *sql.DB
}

// NewStoreRepo creates a new StoreRepo.
func NewStoreRepo(db *sql.DB) *StoreRepo {
	return &StoreRepo{DB: db}
}

const storeColumns = `
	id, store_code, store_name, location, is_active, created_by, created_at, updated_at`

// Create registers a new store. Duplicate store codes surface ErrStoreCodeExists.
func (r *StoreRepo) Create(ctx context.Context, req model.CreateStoreRequest, createdBy string) (*model.Store, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Store
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO stores (store_code, store_name, location, is_active, created_by)
			VALUES ($1, $2, $3, TRUE, $4)
			RETURNING `+storeColumns,
			strings.ToUpper(strings.TrimSpace(req.StoreCode)),
			strings.TrimSpace(req.StoreName),
			req.Location,
			createdBy,
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Store])
		return e
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrStoreCodeExists
		}
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return &out, nil
}

// GetByID retrieves a store by identifier.
func (r *StoreRepo) GetByID(ctx context.Context, id int64) (*model.Store, error) {
	var out model.Store
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx,
			`SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Store])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return &out, nil
}

// List returns stores ordered by code. With activeOnly set, inactive stores
// are filtered out (the shape role assignment uses).
func (r *StoreRepo) List(ctx context.Context, activeOnly bool) ([]*model.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY store_code`

	var collected []model.Store
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		collected, e = pgx.CollectRows(rows, pgx.RowToStructByName[model.Store])
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	res := make([]*model.Store, len(collected))
	for i := range collected {
		res[i] = &collected[i]
	}
	return res, nil
}

// Update applies edits to a store; nil request fields are left unchanged.
func (r *StoreRepo) Update(ctx context.Context, id int64, req model.UpdateStoreRequest) (*model.Store, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setParts := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if req.StoreCode != nil {
		args = append(args, strings.ToUpper(strings.TrimSpace(*req.StoreCode)))
		setParts = append(setParts, fmt.Sprintf("store_code = $%d", len(args)))
	}
	if req.StoreName != nil {
		args = append(args, strings.TrimSpace(*req.StoreName))
		setParts = append(setParts, fmt.Sprintf("store_name = $%d", len(args)))
	}
	if req.Location != nil {
		args = append(args, *req.Location)
		setParts = append(setParts, fmt.Sprintf("location = $%d", len(args)))
	}
	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := "UPDATE stores SET " + strings.Join(setParts, ", ") +
		fmt.Sprintf(", updated_at = now() WHERE id = $%d RETURNING ", len(args)) + storeColumns

	var out model.Store
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Store])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrStoreCodeExists
		}
		return nil, fmt.Errorf("failed to update store: %w", err)
	}
	return &out, nil
}

// SetActive flips the store's active flag.
func (r *StoreRepo) SetActive(ctx context.Context, id int64, active bool) (*model.Store, error) {
	var out model.Store
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			UPDATE stores SET is_active = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+storeColumns, id, active)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Store])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to set store status: %w", err)
	}
	return &out, nil
}
