package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrAlreadyExists = errors.New("booking with this ticket number already exists")
)
