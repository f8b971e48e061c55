package logintokens

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, hash, email string, expiresAt time.Time) error {
	query :=
		`INSERT INTO used_login_tokens (hash, email, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (hash) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, hash, email, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrTokenReplayed
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM used_login_tokens WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
