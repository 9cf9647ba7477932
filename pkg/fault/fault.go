package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUniqueViolation     = errors.New("unique violation")
	ErrForeignKeyViolation = errors.New("referenced resource does not exist")
	ErrConflict            = errors.New("resource was modified concurrently")
)

// Codes reported to API callers.
const (
	CodeNotFound       = "not_found"
	CodeConflict       = "version_conflict"
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal"
)

type ErrorType int

const (
	ErrClient ErrorType = iota
	ErrInternal
)

func (t ErrorType) String() string {
	switch t {
	case ErrClient:
		return "ClientError"
	case ErrInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Fault pairs a caller-safe message with its cause. Field names the request
// field the message is about, when there is one.
type Fault struct {
	Type    ErrorType
	Field   string
	Message string
	Err     error
}

func (e *Fault) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *Fault) Unwrap() error {
	return e.Err
}

func NewClientError(msg string, err error) error {
	return &Fault{Type: ErrClient, Message: msg, Err: err}
}

// NewFieldError is a client error about one request field.
func NewFieldError(field, msg string, err error) error {
	return &Fault{Type: ErrClient, Field: field, Message: msg, Err: err}
}

func NewInternalError(msg string, err error) error {
	return &Fault{Type: ErrInternal, Message: msg, Err: err}
}

func IsClientError(err error) bool {
	var f *Fault
	return errors.As(err, &f) && f.Type == ErrClient
}

func IsInternalError(err error) bool {
	var f *Fault
	return errors.As(err, &f) && f.Type == ErrInternal
}

// Code classifies err for the API. Sentinels win over the Fault wrapping them.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case IsClientError(err):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

// Message returns the caller-safe text of err. Errors that are not client
// faults only expose their text through this, so do not call it for internal ones.
func Message(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		if f.Field != "" {
			return f.Field + ": " + f.Message
		}
		return f.Message
	}
	return err.Error()
}
