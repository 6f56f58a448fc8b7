//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"time"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
)

// User is a directory principal mirrored locally. Rows are created on first
// successful login (or directory sync) and mutated by administrators; the
// auth core never hard-deletes them.
type User struct {
	ID                 int64           `json:"id"                            db:"id"`
	AzureUserID        string          `json:"azure_user_id"                 db:"azure_user_id"`
	Email              string          `json:"email"                         db:"email"`
	DisplayName        string          `json:"display_name"                  db:"display_name"`
	PhotoURL           *string         `json:"photo_url,omitempty"           db:"photo_url"`
	JobTitle           *string         `json:"job_title,omitempty"           db:"job_title"`
	Department         *string         `json:"department,omitempty"          db:"department"`
	Role               domainauth.Role `json:"role"                          db:"role"`
	AssignedStores     *string         `json:"assigned_stores,omitempty"     db:"assigned_stores"`
	AssignedDepartment *string         `json:"assigned_department,omitempty" db:"assigned_department"`
	IsActive           bool            `json:"is_active"                     db:"is_active"`
	IsApproved         bool            `json:"is_approved"                   db:"is_approved"`
	CreatedAt          time.Time       `json:"created_at"                    db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"                    db:"updated_at"`
	LastLogin          *time.Time      `json:"last_login,omitempty"          db:"last_login"`
}

// StoreCodes decodes the serialized assigned-stores column. A missing or
// malformed value yields an empty set; store assignment is advisory data, not
// a gate input.
func (u *User) StoreCodes() []string {
	if u.AssignedStores == nil || *u.AssignedStores == "" {
		return nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(*u.AssignedStores), &codes); err != nil {
		return nil
	}
	return codes
}

// UpdateUserRequest carries the administrator-editable user fields. Nil
// pointers mean "leave unchanged".
type UpdateUserRequest struct {
	Role               *domainauth.Role `json:"role,omitempty"`
	DisplayName        *string          `json:"display_name,omitempty"`
	IsApproved         *bool            `json:"is_approved,omitempty"`
	IsActive           *bool            `json:"is_active,omitempty"`
	AssignedStores     []string         `json:"assigned_stores,omitempty"`
	AssignedDepartment *string          `json:"assigned_department,omitempty"`
}

// Validate rejects role values outside the known enumeration.
func (r *UpdateUserRequest) Validate() error {
	if r.Role != nil {
		if _, err := domainauth.ParseRole(string(*r.Role)); err != nil {
			return err
		}
	}
	return nil
}

// DirectoryUser is the minimal shape consumed by the directory sync: a
// tenant user as listed by Graph, before it becomes (or updates) a local row.
type DirectoryUser struct {
	AzureUserID string `json:"azure_user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	JobTitle    string `json:"job_title,omitempty"`
	Department  string `json:"department,omitempty"`
}
