// errors.go defines the failure taxonomy for backend API calls. Every error
// returned by this package is a *Error whose Kind tells callers how to react:
// re-prompt the user, show the server's message inline, or offer a retry.
package backend

import (
	"errors"
	"net/http"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindTransportFailure covers network errors, timeouts, 5xx responses and
	// undecodable bodies. The user gets a generic retry prompt.
	KindTransportFailure Kind = iota
	// KindAuthExpired is a 401. The adapter has already evicted the session.
	KindAuthExpired
	// KindValidationRejected is any other 4xx. Message carries the server's reason.
	KindValidationRejected
	// KindNotFound is a 404.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthExpired:
		return "auth_expired"
	case KindValidationRejected:
		return "validation_rejected"
	case KindNotFound:
		return "not_found"
	default:
		return "transport_failure"
	}
}

var (
	ErrAuthExpired        = errors.New("backend: authentication expired")
	ErrValidationRejected = errors.New("backend: request rejected")
	ErrTransportFailure   = errors.New("backend: transport failure")
	ErrNotFound           = errors.New("backend: not found")
	ErrMissingBaseURL     = errors.New("backend: base URL is required")
)

// Error represents a failed call to the backend API.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind sentinels so callers can write errors.Is(err, backend.ErrNotFound).
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuthExpired:
		return ErrAuthExpired
	case KindValidationRejected:
		return ErrValidationRejected
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrTransportFailure
	}
}

// NewError creates a new backend error.
func NewError(kind Kind, statusCode int, message string, err error) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Message: message, Err: err}
}

// Rejected builds a validation error that never reached the server, so local
// form checks and server-side 4xx answers look the same to callers.
func Rejected(message string) *Error {
	return NewError(KindValidationRejected, 0, message, nil)
}

// classifyStatus maps a non-2xx HTTP status onto a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthExpired
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidationRejected
	default:
		return KindTransportFailure
	}
}

// KindOf returns the Kind of err, or KindTransportFailure for foreign errors.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindTransportFailure
}

// MessageOf returns the server supplied message carried by err, if any.
func MessageOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return ""
}
