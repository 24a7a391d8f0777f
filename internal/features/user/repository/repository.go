package repository

import (
	"context"

	"lightning-tournament-backend/internal/features/user/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByLinkingKey(ctx context.Context, linkingKey string) (*models.User, error)
	UpdateLightningAddress(ctx context.Context, id, address string) error
}
