package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
)

func TestMeUsesMailWhenPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/me":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                "az-1",
				"displayName":       "Kim",
				"mail":              "kim@example.com",
				"userPrincipalName": "kim_example.com#EXT#@tenant.onmicrosoft.com",
				"jobTitle":          "Manager",
				"department":        "Retail",
			})
		default:
			// Photo endpoint: absence is the common case.
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	profile, err := c.Me(context.Background(), "token-1")
	require.NoError(t, err)

	assert.Equal(t, "az-1", profile.AzureUserID)
	assert.Equal(t, "kim@example.com", profile.Email)
	assert.Equal(t, "Kim", profile.DisplayName)
	assert.Equal(t, "Retail", profile.Department)
	assert.Empty(t, profile.PhotoURL)
}

func TestMeFallsBackToUserPrincipalName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                "az-2",
			"displayName":       "Lee",
			"mail":              nil,
			"userPrincipalName": "lee@example.com",
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	profile, err := c.Me(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "lee@example.com", profile.Email)
}

func TestMeWithoutAnyEmailFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "az-3",
			"displayName": "Ghost",
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Me(context.Background(), "token")
	var profErr *domainauth.ProfileFetchError
	require.ErrorAs(t, err, &profErr)
}

func TestMeRejectedTokenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Me(context.Background(), "expired")
	var profErr *domainauth.ProfileFetchError
	require.ErrorAs(t, err, &profErr)
}

func TestMeAttachesPhotoAsDataURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":   "az-4",
				"mail": "pic@example.com",
			})
		case "/me/photos/48x48/$value":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	profile, err := c.Me(context.Background(), "token")
	require.NoError(t, err)
	assert.Contains(t, profile.PhotoURL, "data:image/png;base64,")
}

func TestListUsersFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users" && r.URL.Query().Get("page") == "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{
					{"id": "az-1", "mail": "a@example.com", "displayName": "A"},
					// No usable email: skipped rather than synced as a blank row.
					{"id": "az-2", "displayName": "Roomless Meeting Account"},
				},
				"@odata.nextLink": srv.URL + "/users?page=2",
			})
		case r.URL.Query().Get("page") == "2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{
					{"id": "az-3", "userPrincipalName": "c@example.com", "displayName": "C"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	users, err := c.ListUsers(context.Background(), "token")
	require.NoError(t, err)

	require.Len(t, users, 2)
	assert.Equal(t, "a@example.com", users[0].Email)
	assert.Equal(t, "c@example.com", users[1].Email)
}

func TestListUsersMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"value": "not-a-list"})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.ListUsers(context.Background(), "token")
	assert.Error(t, err)
}
