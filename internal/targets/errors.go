package targets

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is; the typed errors below match them.
var (
	ErrValidation   = errors.New("invalid target")
	ErrDuplicate    = errors.New("duplicate target")
	ErrProtected    = errors.New("target is protected")
	ErrMinimumCount = errors.New("at least one target must remain")
	ErrNotFound     = errors.New("target not found")
	ErrCancelled    = errors.New("cancelled")
)

// ValidationError reports empty or malformed input to Add.
type ValidationError struct {
	Field  string // "url" or "name"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateError reports a case-insensitive URL collision.
type DuplicateError struct {
	URL string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s is already in the list", e.URL)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// ProtectedError reports an attempt to remove a protected target.
type ProtectedError struct {
	URL string
}

func (e *ProtectedError) Error() string {
	return fmt.Sprintf("%s is protected and cannot be removed", e.URL)
}

func (e *ProtectedError) Is(target error) bool { return target == ErrProtected }

// MinimumCountError reports an attempt to remove the last remaining target.
type MinimumCountError struct {
	URL string
}

func (e *MinimumCountError) Error() string {
	return fmt.Sprintf("%s is the only target and cannot be removed", e.URL)
}

func (e *MinimumCountError) Is(target error) bool { return target == ErrMinimumCount }

// NotFoundError reports a URL that is not in the list.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s is not in the list", e.URL)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
