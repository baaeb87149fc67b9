package service

import (
	"errors"
	"strings"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrMFARequired        = errors.New("a one-time code is required")
	ErrInvalidMFACode     = errors.New("invalid one-time code")
	ErrMFANotEnrolled     = errors.New("mfa enrollment has not been started")
	ErrMFAAlreadyEnabled  = errors.New("mfa is already enabled")
	ErrWeakPassword       = errors.New("password must be at least 12 characters")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// validation collects field problems and yields a *ValidationError when any
// were recorded.
type validation []string

func (v *validation) check(ok bool, msg string) {
	if !ok {
		*v = append(*v, msg)
	}
}

func (v validation) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}
