package conversations

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

func (r *PostgresRepository) Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	query :=
		`INSERT INTO conversations (user_id, transcript, summary, duration, start_time, end_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		c.UserID, c.Transcript, c.Summary, c.Duration, c.StartTime, c.EndTime, c.Status).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	query :=
		`SELECT id, user_id, transcript, summary, duration, start_time, end_time, status, created_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Transcript, &c.Summary, &c.Duration,
			&c.StartTime, &c.EndTime, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// GetByID only finds conversations owned by userID.
func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.Conversation, error) {
	query :=
		`SELECT id, user_id, transcript, summary, duration, start_time, end_time, status, created_at
		 FROM conversations
		 WHERE id = $1 AND user_id = $2`

	var c models.Conversation
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&c.ID, &c.UserID, &c.Transcript,
		&c.Summary, &c.Duration, &c.StartTime, &c.EndTime, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &c, nil
}
