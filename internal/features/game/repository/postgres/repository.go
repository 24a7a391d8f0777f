package postgres

import (
	"context"
	"database/sql"

	"lightning-tournament-backend/internal/features/game/models"
)

type GameRepository struct {
	db *sql.DB
}

func NewGameRepository(db *sql.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) InsertSession(ctx context.Context, s *models.GameSession) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO game_sessions (entry_id, score, level, duration_ms, input_hash, verified)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		 RETURNING id`,
		s.EntryID, s.Score, s.Level, s.DurationMs, s.InputHash, s.Verified).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *GameRepository) ListSessionsForEntry(ctx context.Context, entryID string) ([]*models.GameSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entry_id, score, level, duration_ms, COALESCE(input_hash, ''), verified, created_at
		 FROM game_sessions WHERE entry_id = $1 ORDER BY created_at DESC`,
		entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.GameSession
	for rows.Next() {
		s := &models.GameSession{}
		if err := rows.Scan(&s.ID, &s.EntryID, &s.Score, &s.Level, &s.DurationMs, &s.InputHash, &s.Verified, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *GameRepository) EntryStats(ctx context.Context, entryID string) (*models.StatsResponse, error) {
	stats := &models.StatsResponse{}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(MAX(score), 0),
		        COALESCE(SUM(score), 0),
		        COUNT(*) FILTER (WHERE verified)
		 FROM game_sessions WHERE entry_id = $1`,
		entryID).Scan(&stats.Sessions, &stats.BestScore, &stats.TotalScore, &stats.VerifiedCount)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
