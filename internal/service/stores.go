package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gmrl/auth-portal/internal/data"
	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/ports"
)

// StoreServiceOptions groups dependencies for StoreService.
type StoreServiceOptions struct {
	Stores *data.StoreRepo
	Audit  ports.AuditRecorder // Optional
	Logger *slog.Logger        // Optional
}

// StoreService backs the admin store-management surface.
type StoreService struct {
	stores *data.StoreRepo
	audit  ports.AuditRecorder
	logger *slog.Logger
}

// NewStoreService constructs a new StoreService.
func NewStoreService(opts StoreServiceOptions) (*StoreService, error) {
	if opts.Stores == nil {
		return nil, errors.New("StoreRepo is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreService{
		stores: opts.Stores,
		audit:  opts.Audit,
		logger: logger.With("component", "store_service"),
	}, nil
}

// List returns stores, optionally restricted to active ones.
func (s *StoreService) List(ctx context.Context, activeOnly bool) ([]*model.Store, error) {
	return s.stores.List(ctx, activeOnly)
}

// Get returns one store by id.
func (s *StoreService) Get(ctx context.Context, id int64) (*model.Store, error) {
	return s.stores.GetByID(ctx, id)
}

// Create registers a store.
func (s *StoreService) Create(ctx context.Context, actorID int64, actorEmail string, req model.CreateStoreRequest) (*model.Store, error) {
	store, err := s.stores.Create(ctx, req, actorEmail)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, model.AuditActionCreateStore,
		auditDetail("store %s created", store.StoreCode))
	return store, nil
}

// Update applies edits to a store.
func (s *StoreService) Update(ctx context.Context, actorID, id int64, req model.UpdateStoreRequest) (*model.Store, error) {
	store, err := s.stores.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, model.AuditActionUpdateStore,
		auditDetail("store %d updated", id))
	return store, nil
}

// SetActive flips a store's active flag.
func (s *StoreService) SetActive(ctx context.Context, actorID, id int64, active bool) (*model.Store, error) {
	store, err := s.stores.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, model.AuditActionUpdateStore,
		auditDetail("store %d active=%t", id, active))
	return store, nil
}

func (s *StoreService) recordAudit(ctx context.Context, actorID int64, action string, detail *string) {
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
