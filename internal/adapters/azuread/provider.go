package azuread

// Package azuread implements the authorization-code exchange against Azure AD
// using OIDC discovery, so endpoint URLs never need hardcoding.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
)

const exchangeTimeout = 15 * time.Second

// Provider implements ports.TokenExchanger against Azure AD.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// ProviderConfig holds the Azure AD app registration details.
type ProviderConfig struct {
	// Issuer is the tenant OIDC issuer, e.g.
	// https://login.microsoftonline.com/{tenant}/v2.0
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	HTTPClient   *http.Client // optional, defaults to a 30s-timeout client
}

// NewProvider runs OIDC discovery against the tenant issuer and builds the
// OAuth2 configuration from the discovered endpoints.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	discoveryCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(cfg.Issuer, "/")
	op, err := gooidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Provider{
		httpClient: httpClient,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

// AuthCodeURL builds the authorize URL carrying the opaque state. The browser
// is redirected here; this process never calls the URL itself.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("response_mode", "query"),
	)
}

// Exchange trades the authorization code for tokens. Provider rejection
// (expired or reused code, mismatched redirect URI) and timeouts both come
// back as *domainauth.TokenExchangeError so the handler can treat every
// exchange failure the same way.
func (p *Provider) Exchange(ctx context.Context, code string) (domainauth.Tokens, error) {
	if code == "" {
		return domainauth.Tokens{}, &domainauth.TokenExchangeError{Err: errors.New("authorization code is required")}
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return domainauth.Tokens{}, &domainauth.TokenExchangeError{Err: err}
	}
	if token.AccessToken == "" {
		return domainauth.Tokens{}, &domainauth.TokenExchangeError{Err: errors.New("empty access token in provider response")}
	}

	return domainauth.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}
