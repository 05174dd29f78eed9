// Package apierr is the transport-agnostic error taxonomy spec.md §7 calls
// for: a small set of sentinel errors plus a status/code wrapper that the
// transport layer maps onto HTTP status codes.
package apierr

import (
	"errors"
	"fmt"
)

// Sentinels. Use errors.Is against these from calling code; wrap with New
// when a status/code pair needs to travel with the error.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrPrecondition    = errors.New("precondition failed")
	ErrDependencyCycle = errors.New("dependency cycle detected")
	ErrLMConfigMissing = errors.New("lm configuration missing")
	ErrLMInvocation    = errors.New("lm invocation failed")
)

// Error carries a transport status/code alongside a wrapped sentinel so the
// core can raise taxonomy errors without importing net/http.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(code string, err error) *Error { return New(400, code, wrapf(ErrValidation, err)) }
func NotFound(code string, err error) *Error    { return New(404, code, wrapf(ErrNotFound, err)) }
func Precondition(code string, err error) *Error {
	return New(409, code, wrapf(ErrPrecondition, err))
}
func DependencyCycle(err error) *Error {
	return New(409, "dependency_cycle", wrapf(ErrDependencyCycle, err))
}
func LMConfigMissing(err error) *Error {
	return New(503, "lm_configuration_missing", wrapf(ErrLMConfigMissing, err))
}
func LMInvocation(err error) *Error {
	return New(503, "lm_invocation_failed", wrapf(ErrLMInvocation, err))
}

// wrapf folds a sentinel and an underlying cause into one error without
// losing either in errors.Is/errors.As chains.
func wrapf(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}

func Is(err error, target error) bool { return errors.Is(err, target) }
