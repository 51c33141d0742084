package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrAlreadyExists = errors.New("reservation already exists")

	ErrLockHeld = errors.New("inventory lock is held by another writer")
)
