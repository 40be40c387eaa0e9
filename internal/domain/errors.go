package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a bookmark does not exist for the owner.
	ErrNotFound = errors.New("bookmark not found")
	// ErrNoSession is returned when an operation needs a signed-in user.
	ErrNoSession = errors.New("not signed in")
	// ErrInvalidCredentials is returned when sign-in fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an email twice.
	ErrUserExists = errors.New("user already exists")
)

// ValidationError reports missing required fields. Raised before any store call.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("%s is required", capitalize(e.Fields[0]))
	}
	return "Title and URL are required"
}

// StoreError wraps a failed store call. Its message is the store's message verbatim.
type StoreError struct {
	Op  string // query, insert, update, delete, subscribe
	Err error
}

func (e *StoreError) Error() string { return e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func capitalize(s string) string {
	if s == "url" {
		return "URL"
	}
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
