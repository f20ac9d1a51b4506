// Package apperr defines the error kinds shared by the ledger core.
package apperr

import (
	"errors"
	"strings"
)

var (
	// ErrConstraint is a duplicate unique key (email, category name+type).
	ErrConstraint = errors.New("already exists")
	// ErrNotFound is a referenced id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCrypto is an authentication failure or malformed ciphertext.
	ErrCrypto = errors.New("decryption failed")
	// ErrBadPassword is returned for whole-file imports that fail authentication.
	// Wrong password and corruption are deliberately indistinguishable.
	ErrBadPassword = errors.New("incorrect password or corrupted file")
	// ErrStorageUnavailable means the store is not open (secret missing or locked).
	ErrStorageUnavailable = errors.New("storage unavailable: onboarding or unlock required")
	// ErrRateLimited is returned when exports exceed the rolling window budget.
	ErrRateLimited = errors.New("too many exports, please wait and try again")
	// ErrResourceLimit is returned for import files above the size ceiling.
	ErrResourceLimit = errors.New("file too large")
)

// ValidationError collects every violation found in an input.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Violations, "; ")
}

// Add appends a violation.
func (e *ValidationError) Add(msg string) {
	e.Violations = append(e.Violations, msg)
}

// Err returns nil when no violation was recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}
	return e
}

// Invalid builds a ValidationError from the given messages.
func Invalid(msgs ...string) error {
	v := &ValidationError{}
	for _, m := range msgs {
		v.Add(m)
	}
	return v.Err()
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Public returns the message that may be shown to the end user.
// Validation and constraint errors are surfaced verbatim, everything
// else is replaced by a generic message.
func Public(err error) string {
	var v *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &v):
		return v.Error()
	case errors.Is(err, ErrConstraint):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "record not found"
	case errors.Is(err, ErrBadPassword):
		return ErrBadPassword.Error()
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited.Error()
	case errors.Is(err, ErrResourceLimit):
		return "file too large (limit 100 MB)"
	case errors.Is(err, ErrStorageUnavailable):
		return ErrStorageUnavailable.Error()
	default:
		return "operation failed, please try again"
	}
}
