package conversations

import (
	"context"

	"github.com/dmitrijs2005/taxvoice/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	// ListByUser returns the user's conversations, most recent first.
	ListByUser(ctx context.Context, userID string) ([]models.Conversation, error)
	GetByID(ctx context.Context, userID, id string) (*models.Conversation, error)
}
