package session

import (
	"errors"
	"fmt"
)

// ErrLoginInFlight is returned when Login is called while another login is
// still pending. At most one credential submission is in flight at a time.
var ErrLoginInFlight = errors.New("session: login already in progress")

// ErrNotAuthenticated is returned when Refresh is called outside the
// authenticated state.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// AuthError describes a failed auth REST operation: invalid credentials, a
// stale token, or a network failure during authentication.
type AuthError struct {
	Op         string // login | me | refresh
	StatusCode int    // zero for transport-level failures
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth %s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("auth %s failed", e.Op)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
