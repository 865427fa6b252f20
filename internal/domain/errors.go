package domain

import (
	"context"
	"errors"
)

var (
	ErrTransport      = errors.New("push transport failed")
	ErrFetch          = errors.New("snapshot fetch failed")
	ErrMalformedEvent = errors.New("malformed push event")
	ErrStaleSession   = errors.New("write from a superseded session")
	ErrNoSession      = errors.New("no active session")
	ErrProfileMissing = errors.New("profile not found")
	ErrSecretNotFound = errors.New("secret not found")
)

// ActionError is returned when an action endpoint rejects a user request.
// Message is meant to be shown to the user as is.
type ActionError struct {
	Action  string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return e.Action + " failed"
	}
	return e.Action + " failed: " + e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// IsCancellation reports errors caused by tearing a session down.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
