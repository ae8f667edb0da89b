package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of where it surfaced.
type Kind string

const (
	KindNetwork        Kind = "network_error"
	KindTimeout        Kind = "timeout_error"
	KindOffline        Kind = "offline_error"
	KindUpstream       Kind = "upstream_error"
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindRateLimited    Kind = "rate_limited"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindSessionExpired Kind = "session_expired"
	KindInvalidInput   Kind = "invalid_input"
	KindStateError     Kind = "state_error"
	KindUnknown        Kind = "unknown_error"
)

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a fault of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to unknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether an operation that produced err may be retried.
// Network, timeout and rate-limit failures are transient; everything else
// needs caller intervention.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}

// UserMessage maps a kind to the text shown to callers. Raw error text
// never leaves the edge.
func UserMessage(kind Kind) string {
	switch kind {
	case KindNetwork, KindOffline:
		return "the service is temporarily unreachable"
	case KindTimeout:
		return "the request took too long to complete"
	case KindUpstream:
		return "the upstream service returned an error"
	case KindValidation, KindInvalidInput:
		return "the request is invalid"
	case KindNotFound:
		return "the requested resource was not found"
	case KindConflict:
		return "the request conflicts with the current state"
	case KindRateLimited:
		return "too many requests, slow down"
	case KindUnauthorized:
		return "authentication required"
	case KindForbidden:
		return "you do not have access to this resource"
	case KindSessionExpired:
		return "your session has expired, please sign in again"
	case KindStateError:
		return "the service is temporarily unavailable"
	default:
		return "something went wrong"
	}
}

// HTTPStatus maps a kind to the response status served at the edge.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized, KindSessionExpired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork, KindOffline, KindUpstream:
		return http.StatusBadGateway
	case KindStateError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
