// Package core holds the error taxonomy shared by the voice backend.
package core

import (
	"errors"
	"fmt"
)

// Error is a categorized error surfaced to callers and, where relevant,
// serialized onto the wire.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Code    string    `json:"code,omitempty"`

	// Underlying is the wrapped collaborator error, if any.
	Underlying error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped collaborator error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrCollaborator   ErrorType = "collaborator_error"
)

// ErrStreamClosed reports that a streaming collaborator (STT, TTS) has
// disconnected. The session decides whether to reconnect or tear down.
var ErrStreamClosed = errors.New("stream closed")

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewCollaboratorError wraps a failure from an external collaborator
// (LLM, STT, TTS, search) with the collaborator's name.
func NewCollaboratorError(collaborator string, underlying error) *Error {
	return &Error{
		Type:       ErrCollaborator,
		Message:    fmt.Sprintf("%s: %v", collaborator, underlying),
		Underlying: underlying,
	}
}

// IsRetryable reports whether a single local retry is worthwhile.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrCollaborator:
		return true
	default:
		return false
	}
}
