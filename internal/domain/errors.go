package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by API errors carrying a 404 status.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is matched by API errors carrying a 401 status.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrGoogleDisabled is returned when no OAuth client id is configured.
	ErrGoogleDisabled = errors.New("google sign-in is not configured")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not signed in")
)

// ValidationError is raised locally before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthError wraps a failed authentication call. Message is the human-readable
// text extracted from the server response.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message suitable for display.
func (e *AuthError) UserMessage() string {
	return e.Message
}

// MessageOf returns the human-readable part of err. Errors that carry a
// server-provided message expose it through UserMessage.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var m interface{ UserMessage() string }
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
