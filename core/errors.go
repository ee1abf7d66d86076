package core

import "github.com/pkg/errors"

// ErrUpstreamDependency signals that an external collaborator (email delivery,
// blob storage) is unavailable. The write preceding the upstream call is never
// rolled back; callers report the failure without unwinding it.
var ErrUpstreamDependency = errors.New("upstream dependency unavailable")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

// NewShutdownError returns an error signalling that data integrity is
// compromised and the server should gracefully shut down.
func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
