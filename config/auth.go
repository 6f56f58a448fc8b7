package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeAzure uses Azure AD OAuth2/OIDC for authentication.
	AuthModeAzure AuthMode = "azure"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "azure", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: azure, mock)", v)
	}
}

// AzureConfig contains Azure AD OAuth2 configuration.
type AzureConfig struct {
	TenantID     string `env:"TENANT_ID"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URI" envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"        envDefault:"openid profile email offline_access User.Read User.ReadBasic.All"`

	// DiscoveryURL overrides the tenant-derived OIDC issuer; used by tests
	// and non-public clouds. Empty means login.microsoftonline.com/{tenant}/v2.0.
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// Issuer returns the OIDC issuer for the configured tenant.
func (a AzureConfig) Issuer() string {
	if a.DiscoveryURL != "" {
		return a.DiscoveryURL
	}
	return "https://login.microsoftonline.com/" + a.TenantID + "/v2.0"
}

// DevAuthConfig controls the mock identity used when AUTH_MODE=mock.
type DevAuthConfig struct {
	AzureUserID string `env:"AZURE_USER_ID" envDefault:"dev-azure-id"`
	Email       string `env:"EMAIL"         envDefault:"dev@example.com"`
	DisplayName string `env:"DISPLAY_NAME"  envDefault:"Dev User"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"azure"`

	// Azure configuration (used when Mode=azure).
	Azure AzureConfig `envPrefix:"AZURE_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}
