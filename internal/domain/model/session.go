package model

import "time"

// Session is one authenticated browser session. The token is the primary key
// and the only handle callers ever hold; validity additionally depends on the
// owning user's active flag, which lives on the joined User row.
type Session struct {
	Token             string    `json:"token"                   db:"session_token"`
	UserID            int64     `json:"user_id"                 db:"user_id"`
	AzureAccessToken  string    `json:"-"                       db:"azure_access_token"`
	AzureRefreshToken *string   `json:"-"                       db:"azure_refresh_token"`
	CreatedAt         time.Time `json:"created_at"              db:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"              db:"expires_at"`
	LastActivity      time.Time `json:"last_activity"           db:"last_activity"`
}

// SessionWithUser is the joined row returned by a validity lookup: the
// session plus the user fields needed to build a request principal. Only
// sessions passing the expiry and active-flag filters are ever materialized
// into this shape.
type SessionWithUser struct {
	Session Session
	User    User
}
