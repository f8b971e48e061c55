// Package common defines shared constants and sentinel errors used across
// the server and client layers of taxvoice. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Auth errors.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidPayload = errors.New("invalid token payload")
	ErrTokenReplayed  = errors.New("token already used")

	// Conversation errors.
	ErrEmptyTranscript = errors.New("empty transcript")

	// Quota errors.
	ErrQuotaExhausted    = errors.New("call quota exhausted")
	ErrNoQuotaConfigured = errors.New("no call quota configured")
	ErrQuotaBelowFloor   = errors.New("call quota below start floor")

	// Collaborator errors.
	ErrUpstream    = errors.New("upstream error")
	ErrTimeout     = errors.New("timeout")
	ErrPersistence = errors.New("persistence error")
)

// QuotaError reports a ledger refusal together with the balance left after
// the refusal was applied. Kind is one of ErrQuotaExhausted,
// ErrNoQuotaConfigured or ErrQuotaBelowFloor.
type QuotaError struct {
	Kind      error
	Remaining int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%v (remaining %ds)", e.Kind, e.Remaining)
}

func (e *QuotaError) Unwrap() error { return e.Kind }
