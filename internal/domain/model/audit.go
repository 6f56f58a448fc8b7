package model

import "time"

// Audit actions recorded by the auth core and admin surface.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionUpdateUser     = "UPDATE_USER"
	AuditActionUpdateRole     = "UPDATE_ROLE"
	AuditActionActivateUser   = "ACTIVATE_USER"
	AuditActionDeactivateUser = "DEACTIVATE_USER"
	AuditActionSyncDirectory  = "SYNC_DIRECTORY"
	AuditActionCreateStore    = "CREATE_STORE"
	AuditActionUpdateStore    = "UPDATE_STORE"
)

// AuditEntry is a best-effort activity record. Writes never block or fail a
// request; the entry is advisory history, not a security control.
type AuditEntry struct {
	ID        string    `json:"id"                   db:"id"`
	UserID    int64     `json:"user_id"              db:"user_id"`
	Action    string    `json:"action"               db:"action"`
	Detail    *string   `json:"detail,omitempty"     db:"detail"`
	IPAddress *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string   `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at"           db:"created_at"`
}
