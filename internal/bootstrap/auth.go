package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gmrl/auth-portal/config"
	"github.com/gmrl/auth-portal/internal/adapters/azuread"
	"github.com/gmrl/auth-portal/internal/adapters/devauth"
	"github.com/gmrl/auth-portal/internal/adapters/graph"
	"github.com/gmrl/auth-portal/internal/ports"
)

// BuildAuthProviders constructs the token exchanger and directory client for
// the configured auth mode. Mock mode is refused outside development.
func BuildAuthProviders(
	ctx context.Context,
	cfg config.AppConfig,
	logger *slog.Logger,
) (ports.TokenExchanger, ports.DirectoryClient, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeAzure:
		azure := cfg.Auth.Azure
		if azure.TenantID == "" {
			return nil, nil, errors.New("AZURE_TENANT_ID is required in azure auth mode")
		}
		provider, err := azuread.NewProvider(ctx, azuread.ProviderConfig{
			Issuer:       azure.Issuer(),
			ClientID:     azure.ClientID,
			ClientSecret: azure.ClientSecret,
			RedirectURL:  azure.RedirectURL,
			Scope:        azure.Scope,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build azure provider: %w", err)
		}
		// Delegated Graph calls ride the user's own access token, so the
		// directory client needs no credentials of its own.
		return provider, graph.NewClient(), nil

	case config.AuthModeMock:
		if !cfg.IsDev {
			return nil, nil, errors.New("mock auth mode is only allowed in development")
		}
		dev, err := devauth.NewProvider(devauth.Config{
			AzureUserID: cfg.Auth.DevAuth.AzureUserID,
			Email:       cfg.Auth.DevAuth.Email,
			DisplayName: cfg.Auth.DevAuth.DisplayName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build dev provider: %w", err)
		}
		logger.Warn("mock auth mode enabled; every login resolves to the configured dev identity")
		return dev, dev, nil

	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
