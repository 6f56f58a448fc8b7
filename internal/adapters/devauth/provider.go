package devauth

// Package devauth short-circuits the Azure AD flow for local development:
// the login redirect lands straight on our own callback and the exchange
// returns a configured identity without any network calls.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
)

// Config controls the dev identity.
type Config struct {
	AzureUserID string
	Email       string
	DisplayName string
}

// Provider implements ports.TokenExchanger and ports.DirectoryClient with a
// fixed local identity.
type Provider struct {
	profile domainauth.Profile
}

// NewProvider constructs a dev provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: email is required")
	}
	if cfg.AzureUserID == "" {
		cfg.AzureUserID = "dev-azure-id"
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Dev User"
	}
	return &Provider{
		profile: domainauth.Profile{
			AzureUserID: cfg.AzureUserID,
			Email:       cfg.Email,
			DisplayName: cfg.DisplayName,
			JobTitle:    "Developer",
			Department:  "Engineering",
		},
	}, nil
}

// AuthCodeURL points the browser straight back at our callback.
func (p *Provider) AuthCodeURL(state string) string {
	return "/auth/callback?code=dev&state=" + url.QueryEscape(state)
}

// Exchange ignores the code and mints a random local token pair.
func (p *Provider) Exchange(_ context.Context, _ string) (domainauth.Tokens, error) {
	access, err := randomString(32)
	if err != nil {
		return domainauth.Tokens{}, fmt.Errorf("generate dev token: %w", err)
	}
	return domainauth.Tokens{
		AccessToken: "dev-" + access,
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

// Me returns the configured dev identity.
func (p *Provider) Me(_ context.Context, _ string) (domainauth.Profile, error) {
	return p.profile, nil
}

// ListUsers returns a single-entry directory holding the dev identity.
func (p *Provider) ListUsers(_ context.Context, _ string) ([]model.DirectoryUser, error) {
	return []model.DirectoryUser{{
		AzureUserID: p.profile.AzureUserID,
		Email:       p.profile.Email,
		DisplayName: p.profile.DisplayName,
		JobTitle:    p.profile.JobTitle,
		Department:  p.profile.Department,
	}}, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) > n {
		s = s[:n]
	}
	return s, nil
}
