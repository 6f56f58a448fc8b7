package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
)

// stubResolver maps session tokens to principals for gate tests.
type stubResolver struct {
	principals map[string]*domainauth.Principal
	err        error
}

func (s *stubResolver) GetSession(_ context.Context, token string) (*domainauth.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principals[token], nil
}

func validToken() string { return strings.Repeat("ab", 32) }

func adminPrincipal() *domainauth.Principal {
	return &domainauth.Principal{
		UserID:     1,
		Email:      "admin@example.com",
		Role:       domainauth.RoleAdmin,
		IsActive:   true,
		IsApproved: true,
	}
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAPIWithoutCookie(t *testing.T) {
	resolver := &stubResolver{}
	var called bool
	handler := RequireAuth(resolver)(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication_required")
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestRequireAuthPageRedirectsWithReturnURL(t *testing.T) {
	resolver := &stubResolver{}
	var called bool
	handler := RequireAuth(resolver)(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/dashboard?tab=stores", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login?returnUrl=%2Fdashboard%3Ftab%3Dstores", rec.Header().Get("Location"))
}

func TestRequireAuthStorageErrorIsServerError(t *testing.T) {
	// An unreachable session store must not read as "not signed in": that
	// would 401 APIs and bounce every browser to the login page.
	resolver := &stubResolver{err: errors.New("database down")}

	t.Run("api", func(t *testing.T) {
		var called bool
		handler := RequireAuth(resolver)(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: validToken()})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "session_unavailable")
		// The storage detail stays server-side.
		assert.NotContains(t, rec.Body.String(), "database down")
	})

	t.Run("page", func(t *testing.T) {
		var called bool
		handler := RequireAuth(resolver)(okHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: validToken()})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})
}

func TestRequireAuthSetsPrincipalOnContext(t *testing.T) {
	resolver := &stubResolver{principals: map[string]*domainauth.Principal{
		validToken(): adminPrincipal(),
	}}

	var seen *domainauth.Principal
	handler := RequireAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: validToken()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "admin@example.com", seen.Email)
}

func TestRequireRoleExactMembership(t *testing.T) {
	cases := []struct {
		name    string
		role    domainauth.Role
		allowed []domainauth.Role
		want    int
	}{
		{"listed role passes", domainauth.RoleAuditor, []domainauth.Role{domainauth.RoleAuditor}, http.StatusOK},
		{"unlisted role denied", domainauth.RoleStoreManager, []domainauth.Role{domainauth.RoleAuditor}, http.StatusForbidden},
		// No hierarchy: Admin is denied wherever Admin is not listed.
		{"admin not implicit", domainauth.RoleAdmin, []domainauth.Role{domainauth.RoleAuditor}, http.StatusForbidden},
		{"pending denied everywhere", domainauth.RolePending, []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleAuditor}, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			handler := RequireRole(tc.allowed...)(okHandler(&called))

			principal := adminPrincipal()
			principal.Role = tc.role
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			req = req.WithContext(SetPrincipalInContext(req.Context(), principal))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, tc.want == http.StatusOK, called)
		})
	}
}

func TestRequireRoleAPIDenialNamesRoles(t *testing.T) {
	handler := RequireRole(domainauth.RoleAdmin, domainauth.RoleAuditor)(okHandler(new(bool)))

	principal := adminPrincipal()
	principal.Role = domainauth.RoleStoreManager
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req = req.WithContext(SetPrincipalInContext(req.Context(), principal))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "StoreManager")
	assert.Contains(t, rec.Body.String(), "Admin, Auditor")
}

func TestRequireRoleWithoutPrincipalFailsClosed(t *testing.T) {
	var called bool
	handler := RequireRole(domainauth.RoleAdmin)(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "authorization_misconfigured")
}

func TestRequireRolePageDenialRendersAccessDenied(t *testing.T) {
	handler := RequireRole(domainauth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	principal := adminPrincipal()
	principal.Role = domainauth.RoleAuditor
	principal.Email = `jo<script>@example.com`
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(SetPrincipalInContext(req.Context(), principal))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Access Denied")
	assert.NotContains(t, rec.Body.String(), "<script>")
}

func TestSafeReturnPath(t *testing.T) {
	cases := map[string]string{
		"/dashboard":               "/dashboard",
		"/dashboard?tab=stores":    "/dashboard?tab=stores",
		"":                         "",
		"dashboard":                "",
		"//evil.example.com":       "",
		"https://evil.example.com": "",
		"/\\evil.example.com":      "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, safeReturnPath(raw), "input %q", raw)
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	var ctxID string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "req-42", ctxID)
}

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
