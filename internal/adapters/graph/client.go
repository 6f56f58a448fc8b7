package graph

// Package graph reads the Microsoft Graph directory with a delegated token.

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"
	fetchTimeout   = 15 * time.Second

	// Cloud accounts frequently have a null mail attribute; the UPN is the
	// documented fallback and is an address in practice.
	emailExpr = "mail || userPrincipalName"

	maxDirectoryPages = 50
)

// Client implements ports.DirectoryClient against Microsoft Graph.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default Graph endpoint (tests,
// sovereign clouds).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Graph client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me fetches the authenticated principal's profile. A directory entry without
// any usable email is unusable as an application identity and surfaces
// *domainauth.ProfileFetchError, as does any transport or auth failure.
func (c *Client) Me(ctx context.Context, accessToken string) (domainauth.Profile, error) {
	payload, err := c.getJSON(ctx, accessToken,
		c.baseURL+"/me?$select=id,displayName,mail,userPrincipalName,jobTitle,department")
	if err != nil {
		return domainauth.Profile{}, &domainauth.ProfileFetchError{Err: err}
	}

	email := searchString(payload, emailExpr)
	if email == "" {
		return domainauth.Profile{}, &domainauth.ProfileFetchError{Err: errors.New("directory principal has no email")}
	}

	profile := domainauth.Profile{
		AzureUserID: searchString(payload, "id"),
		Email:       email,
		DisplayName: searchString(payload, "displayName"),
		JobTitle:    searchString(payload, "jobTitle"),
		Department:  searchString(payload, "department"),
	}

	// The photo is decoration; its absence (the common case) is not an error.
	if photo, photoErr := c.fetchPhoto(ctx, accessToken); photoErr == nil {
		profile.PhotoURL = photo
	}

	return profile, nil
}

// ListUsers pages through the tenant directory. Pagination follows
// @odata.nextLink until exhausted, with a page cap against runaway tenants.
func (c *Client) ListUsers(ctx context.Context, accessToken string) ([]model.DirectoryUser, error) {
	url := c.baseURL + "/users?$select=id,displayName,mail,userPrincipalName,jobTitle,department&$top=100"

	var out []model.DirectoryUser
	for page := 0; url != "" && page < maxDirectoryPages; page++ {
		payload, err := c.getJSON(ctx, accessToken, url)
		if err != nil {
			return nil, fmt.Errorf("list directory users: %w", err)
		}

		entries, _ := jmespath.Search("value", payload)
		list, ok := entries.([]any)
		if !ok {
			return nil, errors.New("list directory users: malformed response payload")
		}
		for _, entry := range list {
			email := searchString(entry, emailExpr)
			if email == "" {
				continue
			}
			out = append(out, model.DirectoryUser{
				AzureUserID: searchString(entry, "id"),
				Email:       email,
				DisplayName: searchString(entry, "displayName"),
				JobTitle:    searchString(entry, "jobTitle"),
				Department:  searchString(entry, "department"),
			})
		}

		url = searchString(payload, `"@odata.nextLink"`)
	}
	return out, nil
}

// fetchPhoto retrieves the 48x48 thumbnail as a data URI.
func (c *Client) fetchPhoto(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/me/photos/48x48/$value", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("photo fetch status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, url string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("graph call %s returned %d: %s", url, resp.StatusCode, string(body))
	}

	var payload any
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, fmt.Errorf("decode graph response: %w", decodeErr)
	}
	return payload, nil
}

// searchString evaluates a JMESPath expression and returns the string result,
// or empty for null/missing/non-string values.
func searchString(payload any, expr string) string {
	v, err := jmespath.Search(expr, payload)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
