package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a place or user reference does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotAuthenticated is returned when the caller has no valid session or credentials.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrConflict is returned when a unique user-facing value is already taken.
	ErrConflict = errors.New("conflict")
	// ErrDuplicateKey signals a lost uniqueness race inside the storage layer.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrRatingExists is returned by PushRating when the user already has a rating on the place.
	ErrRatingExists = errors.New("rating already exists for user")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
