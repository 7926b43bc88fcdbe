package logical

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error produced by this module wraps exactly one of these
// so callers can branch with errors.Is regardless of the message.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotImplemented = errors.New("not implemented")
)

// CodedError is an error that carries an HTTP status code so a transport
// layer can map it without string matching.
type CodedError struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

// Unwrap returns the error kind.
func (e *CodedError) Unwrap() error {
	return e.Err
}

// Code returns the HTTP status code.
func (e *CodedError) Code() int {
	return e.Status
}

// Unauthorized creates a 401 error. The message must never reveal whether an
// identifier exists.
func Unauthorized(message string) *CodedError {
	return &CodedError{Status: http.StatusUnauthorized, Message: message, Err: ErrUnauthorized}
}

// NotFoundf creates a formatted 404 error.
func NotFoundf(format string, args ...any) *CodedError {
	return &CodedError{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...), Err: ErrNotFound}
}

// Conflictf creates a formatted 409 error.
func Conflictf(format string, args ...any) *CodedError {
	return &CodedError{Status: http.StatusConflict, Message: fmt.Sprintf(format, args...), Err: ErrConflict}
}

// InvalidRequestf creates a formatted 400 error.
func InvalidRequestf(format string, args ...any) *CodedError {
	return &CodedError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...), Err: ErrInvalidRequest}
}

// NotImplemented creates a 501 error for a capability a backend does not
// provide. Hitting it at runtime is a deployment defect.
func NotImplemented(capability string) *CodedError {
	return &CodedError{Status: http.StatusNotImplemented, Message: capability, Err: ErrNotImplemented}
}

// RoleAssignmentNotFoundError reports that an actor does not hold a role on a
// target. It is a NotFound error.
type RoleAssignmentNotFoundError struct {
	RoleID   string
	ActorID  string
	TargetID string
}

func (e *RoleAssignmentNotFoundError) Error() string {
	return fmt.Sprintf("could not find role assignment with role: %s, user or group: %s, project or domain: %s",
		e.RoleID, e.ActorID, e.TargetID)
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *RoleAssignmentNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Code returns the HTTP status code.
func (e *RoleAssignmentNotFoundError) Code() int {
	return http.StatusNotFound
}

// GetErrorCode extracts the HTTP status code from an error chain.
// Errors without a code map to 500.
func GetErrorCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return http.StatusInternalServerError
}
