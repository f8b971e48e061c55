package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/dbx"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, job_title, password_hash, language, call_seconds, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, name, job_title, password_hash, language, call_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Name, user.JobTitle, user.PasswordHash, user.Language, user.CallSeconds).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var language sql.NullString
	var callSeconds sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Name, &user.JobTitle, &user.PasswordHash,
		&language, &callSeconds, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if language.Valid {
		user.Language = &language.String
	}
	if callSeconds.Valid {
		user.CallSeconds = &callSeconds.Int64
	}
	return user, nil
}

func (r *PostgresRepository) UpdateLanguage(ctx context.Context, id, language string) error {
	query :=
		`UPDATE users SET language = $2, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, language)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// CallSeconds returns the stored balance, nil when no quota is configured.
func (r *PostgresRepository) CallSeconds(ctx context.Context, id string) (*int64, error) {
	query := `SELECT call_seconds FROM users WHERE id = $1`

	var v sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !v.Valid {
		return nil, nil
	}
	return &v.Int64, nil
}

// ApplyTick runs as one statement. The CTE locks the row, so a concurrent tick
// waits and then sees the committed balance.
func (r *PostgresRepository) ApplyTick(ctx context.Context, id string, amount int64) (int64, int64, error) {
	query :=
		`WITH prev AS (
		     SELECT id, call_seconds FROM users
		     WHERE id = $1 AND call_seconds IS NOT NULL
		     FOR UPDATE
		 )
		 UPDATE users u
		 SET call_seconds = GREATEST(prev.call_seconds - $2, 0), updated_at = now()
		 FROM prev
		 WHERE u.id = prev.id
		 RETURNING prev.call_seconds, u.call_seconds`

	var prev, next int64
	err := r.db.QueryRowContext(ctx, query, id, amount).Scan(&prev, &next)
	if err == nil {
		return prev, next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}

	// Either the user is missing or the quota was never configured.
	cur, err := r.CallSeconds(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	if cur == nil {
		return 0, 0, common.ErrNoQuotaConfigured
	}
	return 0, 0, fmt.Errorf("db error: tick on %s affected no rows", id)
}
