package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Stores  *service.StoreService
	Sweeper *service.SweeperService // Optional: enables on-demand sweep

	DB            *sql.DB
	ClientAuth    ClientAuthConfig
	CookieDomain  string
	SecureCookies bool
	SessionTTL    time.Duration
	Logger        *slog.Logger
}

// Gates holds the middleware handles the router was built with, so a host
// application mounting extra routes can guard them with the same session
// resolver and role checks.
type Gates struct {
	RequireAuth func(http.Handler) http.Handler
	RequireRole func(...domainauth.Role) func(http.Handler) http.Handler
}

// NewRouter creates and configures the HTTP router, returning the handler and
// its gates. Gate ordering is part of the contract: RequireRole always sits
// inside RequireAuth.
func NewRouter(services RouterServices) (http.Handler, Gates) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := NewAuthHandlers(AuthHandlersOptions{
		Auth:          services.Auth,
		Logger:        logger,
		ClientConfig:  services.ClientAuth,
		SecureCookies: services.SecureCookies,
		CookieDomain:  services.CookieDomain,
		SessionTTL:    services.SessionTTL,
	})
	adminHandlers := NewAdminHandlers(AdminHandlersOptions{
		Users:   services.Users,
		Stores:  services.Stores,
		Sweeper: services.Sweeper,
		Logger:  logger,
	})
	healthHandlers := NewHealthHandlers(services.DB)

	requireAuth := RequireAuth(services.Auth)
	adminOnly := RequireRole(domainauth.RoleAdmin)

	// Public surface.
	mux.HandleFunc("GET /healthz", healthHandlers.Healthz)
	mux.HandleFunc("HEAD /healthz", healthHandlers.Healthz)
	mux.HandleFunc("GET /readyz", healthHandlers.Readyz)
	mux.HandleFunc("GET /auth/config", authHandlers.Config)
	mux.HandleFunc("GET /auth/login", authHandlers.Login)
	mux.HandleFunc("GET /auth/callback", authHandlers.Callback)
	mux.HandleFunc("GET /auth/login-failed", authHandlers.LoginFailed)
	mux.HandleFunc("GET /auth/logout", authHandlers.Logout)
	mux.HandleFunc("POST /auth/logout", authHandlers.Logout)

	// Authenticated, any role (Pending included: the holding page and the
	// session probe must work before approval).
	mux.Handle("GET /auth/pending", requireAuth(http.HandlerFunc(authHandlers.Pending)))
	mux.Handle("GET /api/auth/session", requireAuth(http.HandlerFunc(authHandlers.Session)))

	// Admin-only management API.
	admin := func(h http.HandlerFunc) http.Handler {
		return requireAuth(adminOnly(h))
	}
	mux.Handle("GET /api/admin/users", admin(adminHandlers.ListUsers))
	mux.Handle("GET /api/admin/users/{id}", admin(adminHandlers.GetUser))
	mux.Handle("PATCH /api/admin/users/{id}", admin(adminHandlers.UpdateUser))
	mux.Handle("PUT /api/admin/users/{id}/role", admin(adminHandlers.AssignRole))
	mux.Handle("POST /api/admin/users/{id}/reject", admin(adminHandlers.RejectUser))
	mux.Handle("PUT /api/admin/users/{id}/status", admin(adminHandlers.SetUserStatus))
	mux.Handle("POST /api/admin/users/sync", admin(adminHandlers.SyncDirectory))
	mux.Handle("GET /api/admin/stores", admin(adminHandlers.ListStores))
	mux.Handle("POST /api/admin/stores", admin(adminHandlers.CreateStore))
	mux.Handle("PATCH /api/admin/stores/{id}", admin(adminHandlers.UpdateStore))
	mux.Handle("PUT /api/admin/stores/{id}/status", admin(adminHandlers.SetStoreStatus))
	mux.Handle("POST /api/admin/sessions/sweep", admin(adminHandlers.SweepSessions))

	// Store listing for role assignment is readable by any approved role.
	approvedRoles := RequireRole(
		domainauth.RoleAdmin,
		domainauth.RoleAuditor,
		domainauth.RoleStoreManager,
		domainauth.RoleCleaningHead,
		domainauth.RoleProcurementHead,
		domainauth.RoleMaintenanceHead,
	)
	mux.Handle("GET /api/stores", requireAuth(approvedRoles(http.HandlerFunc(adminHandlers.ListStores))))

	// Outer middleware chain.
	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = RequestID()(handler)
	handler = Recover(logger)(handler)
	return handler, Gates{RequireAuth: requireAuth, RequireRole: RequireRole}
}
