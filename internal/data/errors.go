package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// User repository sentinels.
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")

	// Session repository sentinels.
	ErrTokenCollision = errors.New("session token already exists")

	// Store repository sentinels.
	ErrStoreNotFound   = errors.New("store not found")
	ErrStoreCodeExists = errors.New("store code already exists")
)
