package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gmrl/auth-portal/internal/data"
	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/mocks"
	"github.com/gmrl/auth-portal/internal/service"
)

func newAdminHandlers(t *testing.T) (*AdminHandlers, handlerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := handlerMocks{
		exchanger: mocks.NewMockTokenExchanger(ctrl),
		directory: mocks.NewMockDirectoryClient(ctrl),
		users:     mocks.NewMockUserRepository(ctrl),
		sessions:  mocks.NewMockSessionRepository(ctrl),
	}

	users, err := service.NewUserService(service.UserServiceOptions{
		Users:     m.users,
		Directory: m.directory,
	})
	require.NoError(t, err)

	h := NewAdminHandlers(AdminHandlersOptions{Users: users})
	return h, m
}

func asAdmin(req *http.Request) *http.Request {
	return req.WithContext(SetPrincipalInContext(req.Context(), &domainauth.Principal{
		UserID:      1,
		Email:       "admin@example.com",
		Role:        domainauth.RoleAdmin,
		AccessToken: "delegated-token",
		IsActive:    true,
		IsApproved:  true,
	}))
}

func TestAssignRoleInvalidRole(t *testing.T) {
	h, _ := newAdminHandlers(t)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/3/role",
		strings.NewReader(`{"role":"SuperAdmin"}`))
	req.SetPathValue("id", "3")
	rec := httptest.NewRecorder()
	h.AssignRole(rec, asAdmin(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_role")
}

func TestAssignRoleSuccess(t *testing.T) {
	h, m := newAdminHandlers(t)

	m.users.EXPECT().UpdateRole(gomock.Any(), int64(3), domainauth.RoleAuditor).
		Return(&model.User{ID: 3, Role: domainauth.RoleAuditor, IsApproved: true, IsActive: true}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/3/role",
		strings.NewReader(`{"role":"Auditor"}`))
	req.SetPathValue("id", "3")
	rec := httptest.NewRecorder()
	h.AssignRole(rec, asAdmin(req))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Auditor"`)
}

func TestGetUserNotFoundMapsTo404(t *testing.T) {
	h, m := newAdminHandlers(t)

	m.users.EXPECT().GetByID(gomock.Any(), int64(42)).Return(nil, data.ErrUserNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users/42", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	h.GetUser(rec, asAdmin(req))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_not_found")
}

func TestGetUserBadID(t *testing.T) {
	h, _ := newAdminHandlers(t)

	for _, raw := range []string{"abc", "0", "-5", ""} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users/x", nil)
		req.SetPathValue("id", raw)
		rec := httptest.NewRecorder()
		h.GetUser(rec, asAdmin(req))

		assert.Equal(t, http.StatusBadRequest, rec.Code, "id %q", raw)
	}
}

func TestUpdateUserRejectsUnknownFields(t *testing.T) {
	h, _ := newAdminHandlers(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/3",
		strings.NewReader(`{"role":"Admin","password":"nope"}`))
	req.SetPathValue("id", "3")
	rec := httptest.NewRecorder()
	h.UpdateUser(rec, asAdmin(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncDirectoryUsesDelegatedToken(t *testing.T) {
	h, m := newAdminHandlers(t)

	m.directory.EXPECT().ListUsers(gomock.Any(), "delegated-token").
		Return([]model.DirectoryUser{{AzureUserID: "az", Email: "a@example.com"}}, nil)
	m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), gomock.Any()).Return(true, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/users/sync", nil)
	rec := httptest.NewRecorder()
	h.SyncDirectory(rec, asAdmin(req))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":1`)
}

func TestSyncDirectoryWithoutPrincipalFailsClosed(t *testing.T) {
	h, _ := newAdminHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/users/sync", nil)
	rec := httptest.NewRecorder()
	h.SyncDirectory(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "authorization_misconfigured")
}

func TestSweepSessionsWhenSweeperDisabled(t *testing.T) {
	h, _ := newAdminHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/sessions/sweep", nil)
	rec := httptest.NewRecorder()
	h.SweepSessions(rec, asAdmin(req))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "sweeper_disabled")
}

func TestServiceErrorFallbackHidesDetail(t *testing.T) {
	h, m := newAdminHandlers(t)

	m.users.EXPECT().List(gomock.Any()).Return(nil, errors.New("pq: relation dropped"))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	rec := httptest.NewRecorder()
	h.ListUsers(rec, asAdmin(req))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
	assert.NotContains(t, rec.Body.String(), "relation dropped")
}
