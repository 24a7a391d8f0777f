package repository

import (
	"context"

	"lightning-tournament-backend/internal/features/game/models"
)

// GameRepository persists the per-attempt audit trail.
type GameRepository interface {
	InsertSession(ctx context.Context, s *models.GameSession) (int64, error)
	ListSessionsForEntry(ctx context.Context, entryID string) ([]*models.GameSession, error)
	EntryStats(ctx context.Context, entryID string) (*models.StatsResponse, error)
}
