package users

import (
	"context"

	"github.com/dmitrijs2005/taxvoice/internal/server/models"
)

// Repository persists users and their call-seconds quota.
//
// ApplyTick is the only quota mutation. It must serialize concurrent callers
// per user and never store a negative balance: it subtracts amount, clamps at
// zero and returns the balance before and after.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateLanguage(ctx context.Context, id, language string) error
	CallSeconds(ctx context.Context, id string) (*int64, error)
	ApplyTick(ctx context.Context, id string, amount int64) (prev, next int64, err error)
}
