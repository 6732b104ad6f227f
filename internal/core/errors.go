package core

import "errors"

// Failure kinds. Callers match them with errors.Is; adapters wrap their own
// errors around these so the kind survives propagation.
var (
	ErrMissingCredential     = errors.New("missing credential")
	ErrCredentialExpired     = errors.New("credential expired")
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrPersistence           = errors.New("persistence failure")
)

// ValidationError describes a single rejected input field. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

var (
	ErrEmptyDescription   = invalid("description", "description is required")
	ErrDescriptionTooLong = invalid("description", "description too long (max 200 characters)")
	ErrInvalidAmount      = invalid("amount", "amount must be a positive number")
	ErrMissingAmount      = invalid("amount", "amount is required")
	ErrInvalidType        = invalid("type", "type must be income or expense")
	ErrMissingCategory    = invalid("category", "category is required for expenses")
	ErrInvalidDate        = invalid("date", "date must be a valid calendar date")
	ErrMissingToken       = invalid("token", "token is required")
	ErrMissingPassword    = invalid("newPassword", "new password is required")
	ErrPasswordTooShort   = invalid("newPassword", "password must be at least 8 characters long")
	ErrInvalidEmail       = invalid("email", "invalid email format")
)

// Persistence wraps a datastore error so it reports as ErrPersistence while
// keeping the cause for logs.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &persistenceError{op: op, cause: err}
}

type persistenceError struct {
	op    string
	cause error
}

func (e *persistenceError) Error() string { return e.op + ": " + e.cause.Error() }
func (e *persistenceError) Unwrap() error { return e.cause }
func (e *persistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// FieldErrors reports several missing fields at once, keyed by field name.
// It matches ErrValidation under errors.Is.
type FieldErrors map[string]string

func (e FieldErrors) Error() string { return "Missing required fields" }

func (e FieldErrors) Is(target error) bool {
	return target == ErrValidation
}
