package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.  Callers branch on the kind; the HTTP
// adapter alone turns it into a status code and wire message.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingFields
	KindUserExists
	KindInvalidCredentials
	KindInvalidRefreshToken
	KindInvalidToken
	KindStorageFailure
	KindNotFound
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindInternal:            "Internal",
	KindMissingFields:       "MissingFields",
	KindUserExists:          "UserExists",
	KindInvalidCredentials:  "InvalidCredentials",
	KindInvalidRefreshToken: "InvalidRefreshToken",
	KindInvalidToken:        "InvalidToken",
	KindStorageFailure:      "StorageFailure",
	KindNotFound:            "NotFound",
	KindInvalidInput:        "InvalidInput",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by every exported service operation.
// Msg is safe to show to an end user; Err is the underlying cause, kept for
// logs only.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrUserExists)
// holds whatever cause is attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingFields       = &Error{Kind: KindMissingFields, Msg: "Email, password and displayName are required"}
	ErrFieldTooLong        = &Error{Kind: KindInvalidInput, Msg: "Email must be at most 320 characters and displayName at most 255"}
	ErrUserExists          = &Error{Kind: KindUserExists, Msg: "User already exists"}
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Msg: "Invalid credentials"}
	ErrRefreshRequired     = &Error{Kind: KindInvalidRefreshToken, Msg: "Refresh token required"}
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidRefreshToken, Msg: "Invalid refresh token"}
	ErrInvalidToken        = &Error{Kind: KindInvalidToken, Msg: "Invalid token"}
	ErrUserNotFound        = &Error{Kind: KindNotFound, Msg: "User not found"}
)

// KindOf extracts the Kind of err.  Errors that did not come from this
// package are Internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err, or fallback when err
// carries none.
func MessageOf(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) && se.Msg != "" && se.Kind != KindInternal && se.Kind != KindStorageFailure {
		return se.Msg
	}
	return fallback
}

func wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: cause}
}

func storageFailure(cause error) *Error {
	return &Error{Kind: KindStorageFailure, Msg: "Identity store unavailable", Err: cause}
}

func internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: cause}
}
