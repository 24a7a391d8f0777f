package repository

import (
	"context"

	"lightning-tournament-backend/internal/features/lnurlauth/models"
)

// WhitelistRepository stores the approved linking keys.
type WhitelistRepository interface {
	Upsert(ctx context.Context, e *models.WhitelistEntry) error
	Get(ctx context.Context, linkingKey string) (*models.WhitelistEntry, error)
	// Delete returns false when the key was not on the list.
	Delete(ctx context.Context, linkingKey string) (bool, error)
	List(ctx context.Context) ([]*models.WhitelistEntry, error)
}
