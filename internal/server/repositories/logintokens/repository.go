package logintokens

import (
	"context"
	"time"
)

// Repository is the ledger of redeemed one-time login tokens.
type Repository interface {
	// MarkUsed records hash as redeemed. It returns common.ErrTokenReplayed
	// when hash is already present.
	MarkUsed(ctx context.Context, hash, email string, expiresAt time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
