package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gmrl/auth-portal/internal/data"
	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/service"
)

// AdminHandlersOptions groups dependencies for AdminHandlers.
type AdminHandlersOptions struct {
	Users   *service.UserService
	Stores  *service.StoreService
	Sweeper *service.SweeperService // Optional
	Logger  *slog.Logger
}

// AdminHandlers serves the user and store management API.
type AdminHandlers struct {
	users   *service.UserService
	stores  *service.StoreService
	sweeper *service.SweeperService
	logger  *slog.Logger
}

// NewAdminHandlers constructs AdminHandlers.
func NewAdminHandlers(opts AdminHandlersOptions) *AdminHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandlers{
		users:   opts.Users,
		stores:  opts.Stores,
		sweeper: opts.Sweeper,
		logger:  logger.With("component", "admin_handlers"),
	}
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

// GetUser handles GET /api/admin/users/{id}.
func (h *AdminHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// UpdateUser handles PATCH /api/admin/users/{id}.
func (h *AdminHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Update(r.Context(), actorID(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// AssignRole handles PUT /api/admin/users/{id}/role.
func (h *AdminHandlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	role, err := domainauth.ParseRole(req.Role)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_role", Err: err})
		return
	}

	user, err := h.users.AssignRole(r.Context(), actorID(r), id, role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// RejectUser handles POST /api/admin/users/{id}/reject.
func (h *AdminHandlers) RejectUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Reject(r.Context(), actorID(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// SetUserStatus handles PUT /api/admin/users/{id}/status.
func (h *AdminHandlers) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.SetActive(r.Context(), actorID(r), id, req.IsActive)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// SyncDirectory handles POST /api/admin/users/sync. The caller's delegated
// token drives the Graph listing; force=true bypasses the cache.
func (h *AdminHandlers) SyncDirectory(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "authorization_misconfigured",
			Err:     errors.New("sync reached without authentication"),
		})
		return
	}

	force := r.URL.Query().Get("force") == "true"
	res, err := h.users.SyncDirectory(r.Context(), principal.UserID, principal.AccessToken, force)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// ListStores handles GET /api/admin/stores.
func (h *AdminHandlers) ListStores(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	stores, err := h.stores.List(r.Context(), activeOnly)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

// CreateStore handles POST /api/admin/stores.
func (h *AdminHandlers) CreateStore(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	var req model.CreateStoreRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	var email string
	var actor int64
	if principal != nil {
		email = principal.Email
		actor = principal.UserID
	}
	store, err := h.stores.Create(r.Context(), actor, email, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, store)
}

// UpdateStore handles PATCH /api/admin/stores/{id}.
func (h *AdminHandlers) UpdateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.UpdateStoreRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	store, err := h.stores.Update(r.Context(), actorID(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, store)
}

// SetStoreStatus handles PUT /api/admin/stores/{id}/status.
func (h *AdminHandlers) SetStoreStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	store, err := h.stores.SetActive(r.Context(), actorID(r), id, req.IsActive)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, store)
}

// SweepSessions handles POST /api/admin/sessions/sweep for an on-demand purge.
func (h *AdminHandlers) SweepSessions(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "sweeper_disabled",
			Err:     errors.New("session sweeper is not running"),
		})
		return
	}
	removed, err := h.sweeper.SweepNow(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// writeServiceError maps service and data errors onto HTTP responses.
func (h *AdminHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, data.ErrUserNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "user_not_found", Err: err})
	case errors.Is(err, data.ErrStoreNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "store_not_found", Err: err})
	case errors.Is(err, data.ErrStoreCodeExists):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "store_code_exists", Err: err})
	case errors.Is(err, data.ErrEmailExists):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "email_exists", Err: err})
	default:
		h.logger.ErrorContext(r.Context(), "admin request failed",
			"path", r.URL.Path, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal_error",
			Err:     errors.New("internal error"),
		})
	}
}

// pathID parses the {id} path segment; on failure the 400 is already written.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_id",
			Err:     errors.New("invalid id"),
		})
		return 0, false
	}
	return id, true
}

// actorID returns the acting user's id for audit records, or zero when the
// principal is absent.
func actorID(r *http.Request) int64 {
	if p := PrincipalFromContext(r.Context()); p != nil {
		return p.UserID
	}
	return 0
}
