package models

import "errors"

// ErrNotFound is returned by lookups when the record does not exist.
var ErrNotFound = errors.New("not found")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
