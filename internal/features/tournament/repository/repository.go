package repository

import (
	"context"
	"time"

	"lightning-tournament-backend/internal/features/tournament/models"
)

// TournamentRepository exposes the tournament, entry and payout operations.
// The guarded single-row updates (attempt cap, pool credit, close-once) are
// the serialization points for everything the engine and the attempt state
// machine do concurrently.
type TournamentRepository interface {
	// CreateTournament is idempotent on date; returns false when a tournament
	// for that date already exists.
	CreateTournament(ctx context.Context, t *models.Tournament) (bool, error)
	GetByDate(ctx context.Context, date string) (*models.Tournament, error)
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	// ListOpenEnded returns open tournaments whose end_time has passed.
	ListOpenEnded(ctx context.Context, now time.Time) ([]*models.Tournament, error)
	UpdatePrizePool(ctx context.Context, tournamentID string, deltaSats int64) error
	// CloseTournament flips open → completed; returns false if it was
	// already completed.
	CloseTournament(ctx context.Context, tournamentID string) (bool, error)

	// GetOrCreateEntry upserts and returns the row, so concurrent callers
	// converge on the same entry without a check-then-act race.
	GetOrCreateEntry(ctx context.Context, tournamentID, userID string) (*models.Entry, error)
	GetEntry(ctx context.Context, tournamentID, userID string) (*models.Entry, error)
	// SettleBuyIn creates the entry and credits the prize pool in one
	// database transaction. Returns false when the entry already existed,
	// which settlement treats as success.
	SettleBuyIn(ctx context.Context, tournamentID, userID string, amountSats int64) (bool, error)
	// IncrementAttempt is the attempt-cap guard: attempts_used += 1 only
	// while attempts_used < max_attempts. Returns nil when the guard fails.
	IncrementAttempt(ctx context.Context, entryID string) (*models.Entry, error)
	// RecordAttemptScore writes the k-th attempt column (k validated against
	// {1,2,3}) and raises best_score.
	RecordAttemptScore(ctx context.Context, entryID string, k int, score int64) (*models.Entry, error)
	// UpdateBestScore raises best_score without binding to an attempt column.
	UpdateBestScore(ctx context.Context, entryID string, score int64) (*models.Entry, error)

	Leaderboard(ctx context.Context, tournamentID string, limit int) ([]*models.LeaderboardRow, error)
	PlayerCount(ctx context.Context, tournamentID string) (int, error)
	// TopWinners returns the best entries joined with payout destinations.
	TopWinners(ctx context.Context, tournamentID string, limit int) ([]*models.Winner, error)

	// CreatePayout is idempotent per (tournament, place).
	CreatePayout(ctx context.Context, p *models.Payout) (bool, error)
	PendingPayouts(ctx context.Context, olderThan time.Duration) ([]*models.Payout, error)
	MarkPayoutPaid(ctx context.Context, payoutID, paymentHash string) error
	IncrementPayoutFailure(ctx context.Context, payoutID string) (int, error)
}
