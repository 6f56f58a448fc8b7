package model

import (
	"errors"
	"strings"
	"time"
)

const maxStoreNameLen = 255

// Store is a retail location managed through the admin surface and
// assignable to store-scoped roles.
type Store struct {
	ID        int64     `json:"id"                 db:"id"`
	StoreCode string    `json:"store_code"         db:"store_code"`
	StoreName string    `json:"store_name"         db:"store_name"`
	Location  *string   `json:"location,omitempty" db:"location"`
	IsActive  bool      `json:"is_active"          db:"is_active"`
	CreatedBy string    `json:"created_by"         db:"created_by"`
	CreatedAt time.Time `json:"created_at"         db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"         db:"updated_at"`
}

// CreateStoreRequest carries the fields needed to register a store.
type CreateStoreRequest struct {
	StoreCode string  `json:"store_code"`
	StoreName string  `json:"store_name"`
	Location  *string `json:"location,omitempty"`
}

// Validate checks required fields and length limits.
func (r *CreateStoreRequest) Validate() error {
	if strings.TrimSpace(r.StoreCode) == "" {
		return errors.New("store_code is required")
	}
	if strings.TrimSpace(r.StoreName) == "" {
		return errors.New("store_name is required")
	}
	if len(r.StoreName) > maxStoreNameLen {
		return errors.New("store_name is too long")
	}
	return nil
}

// UpdateStoreRequest carries the editable store fields; nil means unchanged.
type UpdateStoreRequest struct {
	StoreCode *string `json:"store_code,omitempty"`
	StoreName *string `json:"store_name,omitempty"`
	Location  *string `json:"location,omitempty"`
}

// Validate rejects blank updates for fields that may not be emptied.
func (r *UpdateStoreRequest) Validate() error {
	if r.StoreCode != nil && strings.TrimSpace(*r.StoreCode) == "" {
		return errors.New("store_code cannot be blank")
	}
	if r.StoreName != nil && strings.TrimSpace(*r.StoreName) == "" {
		return errors.New("store_name cannot be blank")
	}
	return nil
}
