package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"time"
)

// Role represents an application authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	// RolePending is assigned to newly discovered users until an
	// administrator approves them with a real role.
	RolePending         Role = "Pending"
	RoleAdmin           Role = "Admin"
	RoleAuditor         Role = "Auditor"
	RoleStoreManager    Role = "StoreManager"
	RoleCleaningHead    Role = "CleaningHead"
	RoleProcurementHead Role = "ProcurementHead"
	RoleMaintenanceHead Role = "MaintenanceHead"
)

// ValidRoles returns all roles known to the application, Pending included.
func ValidRoles() []Role {
	return []Role{
		RolePending,
		RoleAdmin,
		RoleAuditor,
		RoleStoreManager,
		RoleCleaningHead,
		RoleProcurementHead,
		RoleMaintenanceHead,
	}
}

// ParseRole converts a string into a Role, rejecting anything outside the
// closed enumeration. Route wiring uses this so an unknown role is a startup
// error, not a silently never-matching allow-list entry.
func ParseRole(s string) (Role, error) {
	for _, r := range ValidRoles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// MustParseRole is ParseRole for static route configuration; it panics on
// unknown roles so misconfiguration fails at process start.
func MustParseRole(s string) Role {
	r, err := ParseRole(s)
	if err != nil {
		panic(err)
	}
	return r
}

// IsPending reports whether the role is the unapproved default.
func (r Role) IsPending() bool { return r == RolePending }

// Tokens holds the provider tokens obtained from the code exchange.
// They are opaque to this application and stored with the session for
// downstream delegated Graph calls.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Profile is the directory principal shape returned by identity resolution.
// Adapters map provider-specific payloads into this struct.
type Profile struct {
	AzureUserID string
	Email       string
	DisplayName string
	JobTitle    string
	Department  string
	PhotoURL    string
}

// Principal is the authenticated identity attached to a request after the
// authentication gate succeeds.
type Principal struct {
	UserID             int64
	AzureUserID        string
	Email              string
	DisplayName        string
	PhotoURL           string
	JobTitle           string
	Department         string
	Role               Role
	AssignedStores     []string
	AssignedDepartment string
	IsActive           bool
	IsApproved         bool

	// AccessToken is the provider access token stored with the session,
	// available to handlers making delegated Graph calls.
	AccessToken string
}

// SessionTokenLength is the length of a session token in hex characters
// (32 random bytes, hex encoded).
const SessionTokenLength = 64

// IsValidSessionToken reports whether a candidate cookie value matches the
// token generation format: exactly 64 lowercase hexadecimal characters.
// Lookups reject anything else before touching storage.
func IsValidSessionToken(token string) bool {
	if len(token) != SessionTokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// TokenExchangeError indicates the identity provider rejected the
// authorization code (expired, already used, mismatched redirect URI) or the
// exchange timed out. Callers redirect to the login page with a generic
// message; the provider detail stays server-side.
type TokenExchangeError struct {
	Err error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// ProfileFetchError indicates the directory call failed after a valid token,
// or the returned principal had no usable email. Recovery is identical to
// TokenExchangeError.
type ProfileFetchError struct {
	Err error
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("profile fetch failed: %v", e.Err)
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }
