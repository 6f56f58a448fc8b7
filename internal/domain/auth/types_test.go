package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range ValidRoles() {
		parsed, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRole("SuperAdmin")
	assert.Error(t, err)

	// Matching is case-sensitive; the stored form is canonical.
	_, err = ParseRole("admin")
	assert.Error(t, err)
}

func TestMustParseRolePanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() {
		MustParseRole("NotARole")
	})
	assert.NotPanics(t, func() {
		MustParseRole("Auditor")
	})
}

func TestIsPending(t *testing.T) {
	assert.True(t, RolePending.IsPending())
	assert.False(t, RoleAdmin.IsPending())
}

func TestIsValidSessionToken(t *testing.T) {
	valid := strings.Repeat("a1", 32)
	require.Len(t, valid, SessionTokenLength)
	assert.True(t, IsValidSessionToken(valid))

	cases := map[string]string{
		"empty":        "",
		"too_short":    strings.Repeat("a", 63),
		"too_long":     strings.Repeat("a", 65),
		"uppercase":    strings.Repeat("A", 64),
		"non_hex":      strings.Repeat("g", 64),
		"whitespace":   strings.Repeat("a", 63) + " ",
		"punctuation":  strings.Repeat("a", 63) + "'",
		"unicode_tail": strings.Repeat("a", 62) + "é",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, IsValidSessionToken(token))
		})
	}
}

func TestAuthErrorsUnwrap(t *testing.T) {
	inner := assert.AnError
	exchErr := &TokenExchangeError{Err: inner}
	assert.ErrorIs(t, exchErr, inner)
	assert.Contains(t, exchErr.Error(), "token exchange failed")

	profErr := &ProfileFetchError{Err: inner}
	assert.ErrorIs(t, profErr, inner)
	assert.Contains(t, profErr.Error(), "profile fetch failed")
}
