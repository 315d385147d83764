// Package common defines shared constants and sentinel errors used across
// the store, service and transport layers of AuthKeeper. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound       = errors.New("not found")
	ErrDuplicateEmail   = errors.New("duplicate email")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInvalidAttribute = errors.New("invalid attribute")

	// Service-level errors.
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInvalidResetToken = errors.New("invalid reset token")

	// ErrAlreadyRegistered is what Register reports for a taken email.
	// It also matches ErrDuplicateEmail.
	ErrAlreadyRegistered = fmt.Errorf("already registered: %w", ErrDuplicateEmail)

	// Auth errors (invalid, malformed or tampered token).
	ErrInvalidToken = errors.New("invalid token")
)
