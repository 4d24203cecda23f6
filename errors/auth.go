package errors

import (
	"strconv"
	"time"
)

// Rejection kinds produced by the security gate. Every kind is converted to a
// response at the middleware or handler boundary and is never retried.
var (
	// ErrAuthentication covers missing, malformed, expired, blacklisted and
	// revoked tokens alike.
	ErrAuthentication = Unauthorized("invalid or expired token")
	ErrAccountLocked  = Locked("account temporarily locked")
	ErrMFA            = Unauthorized("mfa verification failed")
	ErrRateLimited    = TooManyRequests("too many requests")
	ErrCSRF           = Forbidden("invalid csrf token")
	ErrInvalidLogin   = Unauthorized("invalid username or password")
	ErrPermission     = Forbidden("insufficient permissions")
)

const (
	MetaLockedUntil = "locked_until"
	MetaRetryAfter  = "retry_after"
	MetaAttempts    = "attempts_left"
)

// AccountLocked returns ErrAccountLocked annotated with the lock expiry.
func AccountLocked(until time.Time) *Error {
	return ErrAccountLocked.WithMetadata(map[string]string{
		MetaLockedUntil: until.UTC().Format(time.RFC3339),
	})
}

// RateLimited returns ErrRateLimited annotated with the seconds to wait.
func RateLimited(retryAfter time.Duration) *Error {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return ErrRateLimited.WithMetadata(map[string]string{
		MetaRetryAfter: strconv.Itoa(secs),
	})
}

// InvalidLogin returns ErrInvalidLogin annotated with the remaining attempts.
func InvalidLogin(attemptsLeft int) *Error {
	return ErrInvalidLogin.WithMetadata(map[string]string{
		MetaAttempts: strconv.Itoa(attemptsLeft),
	})
}
