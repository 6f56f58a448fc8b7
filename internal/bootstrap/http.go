package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gmrl/auth-portal/config"
	httpx "github.com/gmrl/auth-portal/internal/http"
)

// HTTPServerConfig contains dependencies for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// StartHTTPServer builds the router and starts listening. Returns the server
// instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	// Production always forces Secure cookies; the flag exists for dev and
	// plain-HTTP lab setups.
	secureCookies := appCfg.HTTP.SecureCookies || !appCfg.IsDev

	handler, _ := httpx.NewRouter(httpx.RouterServices{
		Auth:    cfg.Services.Auth,
		Users:   cfg.Services.Users,
		Stores:  cfg.Services.Stores,
		Sweeper: cfg.Services.Sweeper,
		DB:      cfg.DB,
		ClientAuth: httpx.ClientAuthConfig{
			Mode:        string(appCfg.Auth.Mode),
			TenantID:    appCfg.Auth.Azure.TenantID,
			ClientID:    appCfg.Auth.Azure.ClientID,
			RedirectURL: appCfg.Auth.Azure.RedirectURL,
			Scopes:      strings.Fields(appCfg.Auth.Azure.Scope),
		},
		CookieDomain:  appCfg.HTTP.CookieDomain,
		SecureCookies: secureCookies,
		SessionTTL:    appCfg.Session.TTL,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         appCfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
