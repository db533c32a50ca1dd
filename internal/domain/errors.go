package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoSession is returned when an API call is attempted without an authenticated session.
	ErrNoSession = errors.New("not logged in")
	// ErrLoginInProgress is returned when a login is requested while another is still pending.
	ErrLoginInProgress = errors.New("login already in progress")
)

// AuthError reports a failed or cancelled login.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "login failed"
	}
	if e.Op == "" {
		return "login failed: " + e.Err.Error()
	}
	return fmt.Sprintf("login failed (%s): %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a transport, status or decoding failure on an API call.
type FetchError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " with status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Unauthorized reports whether the API rejected the bearer token.
func (e *FetchError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// ValidationError lists the draft fields that failed client-side checks.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid activity: %s %s", strings.Join(e.Fields, ", "), e.Reason)
}

// NotFoundError is returned when the API has no activity with the given ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("activity %q not found", e.ID)
}
