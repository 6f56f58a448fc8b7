package devauth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderRequiresEmail(t *testing.T) {
	_, err := NewProvider(Config{})
	assert.Error(t, err)
}

func TestAuthCodeURLTargetsLocalCallback(t *testing.T) {
	p, err := NewProvider(Config{Email: "dev@example.com"})
	require.NoError(t, err)

	u := p.AuthCodeURL("abc&def")
	assert.True(t, strings.HasPrefix(u, "/auth/callback?code=dev&state="))
	assert.Contains(t, u, "abc%26def")
}

func TestExchangeMintsLocalTokens(t *testing.T) {
	p, err := NewProvider(Config{Email: "dev@example.com"})
	require.NoError(t, err)

	first, err := p.Exchange(context.Background(), "anything")
	require.NoError(t, err)
	second, err := p.Exchange(context.Background(), "anything")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.AccessToken, "dev-"))
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.False(t, first.Expiry.IsZero())
}

func TestMeAndListUsersShareIdentity(t *testing.T) {
	p, err := NewProvider(Config{Email: "dev@example.com", DisplayName: "Local Dev"})
	require.NoError(t, err)

	profile, err := p.Me(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", profile.Email)
	assert.Equal(t, "Local Dev", profile.DisplayName)

	listing, err := p.ListUsers(context.Background(), "ignored")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, profile.Email, listing[0].Email)
}
