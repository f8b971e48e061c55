package models

import "time"

// UsedLoginToken records a redeemed one-time login token by its SHA-256 hash.
// Rows past ExpiresAt can be pruned; the token itself is no longer valid then.
type UsedLoginToken struct {
	Hash      string
	Email     string
	ExpiresAt time.Time
	UsedAt    time.Time
}
