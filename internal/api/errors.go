package api

import "fmt"

// Kind classifies an API error.
type Kind string

// KindAPIFailure covers transport failures, non-2xx responses and bodies
// that do not decode.
const KindAPIFailure Kind = "api_failure"

// Error is returned by every Client operation that fails.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code, or 0 when no response arrived.
	Status int
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(status int, msg string, cause error) *Error {
	return &Error{Kind: KindAPIFailure, Message: msg, Status: status, Cause: cause}
}
