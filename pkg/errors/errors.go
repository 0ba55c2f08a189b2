package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedToken     = errors.New("malformed token")
	ErrExpiredToken       = errors.New("token expired")
	ErrRevokedToken       = errors.New("token revoked")
	ErrTokenReuseDetected = errors.New("token reuse detected")
	ErrUnknownToken       = errors.New("unknown token")
	ErrWrongTokenType     = errors.New("wrong token type")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("rate limited")
	ErrUserNotFound       = errors.New("user not found")
	ErrIdentityExists     = errors.New("identity already registered")
	ErrNilUser            = errors.New("user is nil")
	ErrNilRecord          = errors.New("refresh token record is nil")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
)

// RateLimitedError carries a retry hint computed from the limiter window.
// It matches ErrRateLimited under errors.Is.
type RateLimitedError struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry in %s", e.Operation, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
