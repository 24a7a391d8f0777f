package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/features/tournament/models"
	"lightning-tournament-backend/internal/features/tournament/repository"
	"lightning-tournament-backend/internal/platform/price"
)

const leaderboardSize = 100

// payoutSplits are the prize shares for places 1..3.
var payoutSplits = []float64{0.50, 0.30, 0.20}

type TournamentService interface {
	// Current returns today's UTC tournament, creating it lazily.
	Current(ctx context.Context) (*models.Tournament, error)
	CurrentInfo(ctx context.Context) (*models.CurrentTournamentResponse, error)
	Leaderboard(ctx context.Context) ([]*models.LeaderboardRow, error)
	MyEntry(ctx context.Context, userID string) (*models.Entry, error)

	HasEntry(ctx context.Context, tournamentID, userID string) (bool, error)
	SettleBuyIn(ctx context.Context, tournamentID, userID string, amountSats int64) (bool, error)
}

type tournamentService struct {
	repo            repository.TournamentRepository
	oracle          *price.Oracle
	buyInSats       int64
	houseFeePercent int
}

func NewTournamentService(repo repository.TournamentRepository, oracle *price.Oracle, buyInSats int64, houseFeePercent int) TournamentService {
	return &tournamentService{
		repo:            repo,
		oracle:          oracle,
		buyInSats:       buyInSats,
		houseFeePercent: houseFeePercent,
	}
}

// utcDate formats t as the tournament date key.
func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func dayBounds(date string) (time.Time, time.Time) {
	start, _ := time.Parse("2006-01-02", date)
	return start, start.Add(24*time.Hour - time.Minute)
}

func (s *tournamentService) Current(ctx context.Context) (*models.Tournament, error) {
	date := utcDate(time.Now())
	t, err := s.repo.GetByDate(ctx, date)
	if err != nil {
		return nil, apperrors.NewInternalError("load tournament", err)
	}
	if t != nil {
		if t.Status != models.StatusOpen {
			return nil, apperrors.New(apperrors.ErrCodeNoTournament, "Today's tournament is closed")
		}
		return t, nil
	}

	start, end := dayBounds(date)
	created := &models.Tournament{
		ID:        uuid.NewString(),
		Date:      date,
		BuyInSats: s.buyInSats,
		Status:    models.StatusOpen,
		StartTime: start,
		EndTime:   end,
	}
	if _, err := s.repo.CreateTournament(ctx, created); err != nil {
		return nil, apperrors.NewInternalError("create tournament", err)
	}
	// Re-read: a concurrent creator may have won the upsert.
	t, err = s.repo.GetByDate(ctx, date)
	if err != nil || t == nil {
		return nil, apperrors.NewInternalError("load tournament", err)
	}
	logger.Info().Str("date", date).Msg("Tournament ready")
	return t, nil
}

func (s *tournamentService) CurrentInfo(ctx context.Context) (*models.CurrentTournamentResponse, error) {
	t, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.PlayerCount(ctx, t.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("count players", err)
	}

	resp := &models.CurrentTournamentResponse{
		Tournament:      t,
		PlayerCount:     count,
		PayoutStructure: s.payoutStructure(t.PrizePoolSats),
	}
	if usd, err := s.oracle.SatsToUSD(ctx, t.PrizePoolSats); err == nil {
		resp.PrizePoolUSD = usd
	} else {
		logger.Warn().Err(err).Msg("Prize pool USD quote unavailable")
	}
	return resp, nil
}

func (s *tournamentService) payoutStructure(poolSats int64) models.PayoutStructure {
	distributable := Distributable(poolSats, s.houseFeePercent)
	out := models.PayoutStructure{HouseFeePercent: s.houseFeePercent}
	for i, pct := range payoutSplits {
		out.Splits = append(out.Splits, models.Split{
			Place:      i + 1,
			Percent:    pct,
			AmountSats: int64(math.Floor(float64(distributable) * pct)),
		})
	}
	return out
}

// Distributable is the pool minus the house fee, floored.
func Distributable(poolSats int64, houseFeePercent int) int64 {
	return int64(math.Floor(float64(poolSats) * (1 - float64(houseFeePercent)/100)))
}

func (s *tournamentService) Leaderboard(ctx context.Context) ([]*models.LeaderboardRow, error) {
	t, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Leaderboard(ctx, t.ID, leaderboardSize)
	if err != nil {
		return nil, apperrors.NewInternalError("load leaderboard", err)
	}
	if rows == nil {
		rows = []*models.LeaderboardRow{}
	}
	return rows, nil
}

func (s *tournamentService) MyEntry(ctx context.Context, userID string) (*models.Entry, error) {
	t, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := s.repo.GetEntry(ctx, t.ID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("load entry", err)
	}
	if entry == nil {
		return nil, apperrors.New(apperrors.ErrCodeNoEntry, "Not entered in today's tournament")
	}
	return entry, nil
}

func (s *tournamentService) HasEntry(ctx context.Context, tournamentID, userID string) (bool, error) {
	entry, err := s.repo.GetEntry(ctx, tournamentID, userID)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

func (s *tournamentService) SettleBuyIn(ctx context.Context, tournamentID, userID string, amountSats int64) (bool, error) {
	return s.repo.SettleBuyIn(ctx, tournamentID, userID, amountSats)
}
