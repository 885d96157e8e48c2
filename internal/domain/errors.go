package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classes surfaced to screens.
type ErrorKind string

const (
	KindBackend         ErrorKind = "backend"
	KindNetwork         ErrorKind = "network"
	KindValidation      ErrorKind = "validation"
	KindSessionMissing  ErrorKind = "session_missing"
	KindNotFound        ErrorKind = "not_found"
	KindProfileCreation ErrorKind = "profile_creation"
	KindUnclassified    ErrorKind = "unclassified"
)

// AuthError is a classified failure. Kind is decided once, where the error
// enters the process, and downstream code switches on it.
type AuthError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// UserMessage returns the text a screen should render for err, or fallback
// when err carries no usable message.
func UserMessage(err error, fallback string) string {
	var ae *AuthError
	if !errors.As(err, &ae) {
		return fallback
	}
	switch ae.Kind {
	case KindBackend, KindNetwork, KindValidation, KindSessionMissing, KindNotFound, KindProfileCreation:
		if ae.Message != "" {
			return ae.Message
		}
	case KindUnclassified:
	}
	return fallback
}

// KindOf returns the kind of err, or KindUnclassified for foreign errors.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnclassified
}

func NewValidationError(msg string) *AuthError {
	return &AuthError{Kind: KindValidation, Message: msg}
}
