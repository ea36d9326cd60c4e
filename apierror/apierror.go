// Package apierror defines the error type shared by schema synthesis and
// request handling. Every failure that can reach a client carries an
// HTTP-mappable status and a stable sub-code that callers match on.
package apierror

import (
	"fmt"
	"net/http"
)

// SubCode identifies the failure class independently of the HTTP status.
// Values are stable; clients and tests match on them.
type SubCode string

const (
	// SubCodeErrorInInitialization marks configuration-consistency faults:
	// the service cannot safely serve a schema it could not fully build.
	SubCodeErrorInInitialization SubCode = "ErrorInInitialization"

	// SubCodeBadRequest marks per-request, recoverable client errors.
	SubCodeBadRequest SubCode = "BadRequest"

	// SubCodeEntityNotFound marks requests naming an entity that is not
	// configured.
	SubCodeEntityNotFound SubCode = "EntityNotFound"

	// SubCodeAuthorizationCheckFailed marks requests whose caller role is
	// not granted the attempted operation.
	SubCodeAuthorizationCheckFailed SubCode = "AuthorizationCheckFailed"

	// SubCodeDatabaseOperationFailed marks execution-layer failures.
	SubCodeDatabaseOperationFailed SubCode = "DatabaseOperationFailed"
)

// Error is the structured failure returned by the core components.
type Error struct {
	Message string
	Status  int
	Sub     SubCode
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error with an explicit status and sub-code.
func New(message string, status int, sub SubCode) *Error {
	return &Error{Message: message, Status: status, Sub: sub}
}

// NewInitError marks a configuration-consistency fault. These abort the
// synthesis pass and are fatal to service start.
func NewInitError(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Status:  http.StatusServiceUnavailable,
		Sub:     SubCodeErrorInInitialization,
	}
}

// NewBadRequest marks a recoverable per-request failure.
func NewBadRequest(message string) *Error {
	return &Error{
		Message: message,
		Status:  http.StatusBadRequest,
		Sub:     SubCodeBadRequest,
	}
}

// NewEntityNotFound reports a request against an unconfigured entity.
func NewEntityNotFound(entity string) *Error {
	return &Error{
		Message: fmt.Sprintf("entity %q is not configured", entity),
		Status:  http.StatusNotFound,
		Sub:     SubCodeEntityNotFound,
	}
}

// NewForbidden reports a caller role lacking the attempted operation.
func NewForbidden(role, entity, operation string) *Error {
	return &Error{
		Message: fmt.Sprintf("role %q is not authorized to %s on entity %q", role, operation, entity),
		Status:  http.StatusForbidden,
		Sub:     SubCodeAuthorizationCheckFailed,
	}
}
