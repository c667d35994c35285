package main

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialMissing = errors.New("no session cookie: nothing in the environment or the cache")
	ErrCredentialInvalid = errors.New("session cookie was rejected by claude.ai")
	ErrLoginTimeout      = errors.New("login timeout: could not detect a successful login")
	ErrSessionKeyMissing = errors.New("sessionKey not found in browser cookies")
	ErrValidationFailed  = errors.New("harvested cookies were rejected by claude.ai")
	ErrUserCancelled     = errors.New("login cancelled by user")
	ErrNoOrganization    = errors.New("no organizations found")
)

// UpstreamError reports a failed call to the claude.ai API. StatusCode is
// zero when the request never got a response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsStatus reports whether err wraps an UpstreamError with the given status code.
func IsStatus(err error, code int) bool {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode == code
	}
	return false
}
