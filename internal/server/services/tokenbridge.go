package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/dbx"
	"github.com/dmitrijs2005/taxvoice/internal/server/auth"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/metrics"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/repomanager"
)

// unboundedTokenRetention is how long a redeemed token without an expiry
// claim stays in the ledger.
const unboundedTokenRetention = 30 * 24 * time.Hour

// TokenBridge exchanges a one-time login token signed by the external
// dashboard for a session credential of this server.
type TokenBridge struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	users       *UserService
	secret      []byte
	singleUse   bool
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewTokenBridge(db *sql.DB, m repomanager.RepositoryManager, users *UserService, cfg *config.Config, mt *metrics.Metrics) *TokenBridge {
	return &TokenBridge{
		db:          db,
		repomanager: m,
		users:       users,
		secret:      []byte(cfg.SessionSecret),
		singleUse:   cfg.SingleUseLoginTokens,
		metrics:     mt,
		now:         time.Now,
	}
}

// Exchange verifies oneTimeToken, finds the user by its email claim and mints
// a session. Every rejection wraps common.ErrorUnauthorized; the wrapped cause
// is for logs only. With single-use enabled the token is recorded in the
// ledger in the same transaction as the lookup, and a second redemption fails
// with common.ErrTokenReplayed.
func (b *TokenBridge) Exchange(ctx context.Context, oneTimeToken string) (*auth.Session, string, error) {
	claims, err := auth.ParseLoginToken(oneTimeToken, b.secret)
	if err != nil {
		b.metrics.RecordExchange(outcomeOf(err))
		return nil, "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	email := normalizeEmail(claims.Email)

	var user *models.User
	lookup := func(ctx context.Context, tx dbx.DBTX) error {
		u, err := b.repomanager.Users(tx).GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		user = u
		if !b.singleUse {
			return nil
		}
		return b.repomanager.LoginTokens(tx).MarkUsed(ctx, tokenHash(oneTimeToken), email, b.retainUntil(claims))
	}

	if b.singleUse {
		err = dbx.WithTx(ctx, b.db, nil, lookup)
	} else {
		err = lookup(ctx, b.db)
	}
	if err != nil {
		b.metrics.RecordExchange(outcomeOf(err))
		switch {
		case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrTokenReplayed):
			return nil, "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
		default:
			return nil, "", fmt.Errorf("token exchange: %w", err)
		}
	}

	session, token, err := b.users.IssueSession(user)
	if err != nil {
		b.metrics.RecordExchange("error")
		return nil, "", err
	}
	b.metrics.RecordExchange("ok")
	return session, token, nil
}

func (b *TokenBridge) retainUntil(claims *auth.LoginClaims) time.Time {
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return b.now().Add(unboundedTokenRetention)
}

// PruneLedger drops ledger rows of tokens that have expired by now.
func (b *TokenBridge) PruneLedger(ctx context.Context) (int64, error) {
	return b.repomanager.LoginTokens(b.db).DeleteExpired(ctx, b.now())
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, common.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, common.ErrorNotFound):
		return "unknown_user"
	case errors.Is(err, common.ErrTokenReplayed):
		return "replayed"
	default:
		return "error"
	}
}
