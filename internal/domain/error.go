package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrUnauthorized     = errors.New("no active session")
	ErrStoreUnavailable = errors.New("entitlement store unavailable")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrLockHeld         = errors.New("lock is held by another instance")
)
