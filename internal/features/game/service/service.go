package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/common/validation"
	"lightning-tournament-backend/internal/features/game/models"
	"lightning-tournament-backend/internal/features/game/repository"
	tournamentmodels "lightning-tournament-backend/internal/features/tournament/models"
	walletmodels "lightning-tournament-backend/internal/features/wallet/models"
)

// attemptTTL is how long a paid attempt stays claimable before the player has
// to pay again.
const attemptTTL = time.Hour

// Tournaments is the slice of the tournament feature the attempt state
// machine needs.
type Tournaments interface {
	Current(ctx context.Context) (*tournamentmodels.Tournament, error)
}

// Entries covers the guarded entry mutations the attempt protocol relies on.
type Entries interface {
	GetOrCreateEntry(ctx context.Context, tournamentID, userID string) (*tournamentmodels.Entry, error)
	GetEntry(ctx context.Context, tournamentID, userID string) (*tournamentmodels.Entry, error)
	IncrementAttempt(ctx context.Context, entryID string) (*tournamentmodels.Entry, error)
	RecordAttemptScore(ctx context.Context, entryID string, k int, score int64) (*tournamentmodels.Entry, error)
	UpdateBestScore(ctx context.Context, entryID string, score int64) (*tournamentmodels.Entry, error)
	UpdatePrizePool(ctx context.Context, tournamentID string, deltaSats int64) error
}

// Ledger is the wallet side: debit for the attempt, credit for the refund.
type Ledger interface {
	Debit(ctx context.Context, userID string, amountSats int64, txType walletmodels.TxType, description, reference string) (int64, error)
	Credit(ctx context.Context, userID string, amountSats int64, txType walletmodels.TxType, description, reference string) (int64, error)
}

// PriceQuote converts the USD attempt price into sats at the current rate.
type PriceQuote interface {
	USDToSats(ctx context.Context, usd float64) (int64, error)
}

type GameService interface {
	Attempts(ctx context.Context, userID string) (*models.AttemptsResponse, error)
	StartAttempt(ctx context.Context, userID string) (*models.StartAttemptResponse, error)
	SubmitScore(ctx context.Context, userID string, req *models.SubmitRequest) (*models.SubmitResponse, error)
	Stats(ctx context.Context, userID string) (*models.StatsResponse, error)
}

type gameService struct {
	tournaments Tournaments
	entries     Entries
	ledger      Ledger
	quotes      PriceQuote
	sessions    repository.GameRepository
	store       cache.Cache

	attemptCostUSD   float64
	maxAttempts      int
	requireAttemptID bool
}

func NewGameService(
	tournaments Tournaments,
	entries Entries,
	ledger Ledger,
	quotes PriceQuote,
	sessions repository.GameRepository,
	store cache.Cache,
	attemptCostUSD float64,
	maxAttempts int,
	requireAttemptID bool,
) GameService {
	return &gameService{
		tournaments:      tournaments,
		entries:          entries,
		ledger:           ledger,
		quotes:           quotes,
		sessions:         sessions,
		store:            store,
		attemptCostUSD:   attemptCostUSD,
		maxAttempts:      maxAttempts,
		requireAttemptID: requireAttemptID,
	}
}

func (s *gameService) Attempts(ctx context.Context, userID string) (*models.AttemptsResponse, error) {
	t, err := s.tournaments.Current(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.AttemptsResponse{
		MaxAttempts: s.maxAttempts,
		CostUSD:     s.attemptCostUSD,
	}
	if sats, err := s.quotes.USDToSats(ctx, s.attemptCostUSD); err == nil {
		resp.CostSats = sats
	} else {
		logger.Warn().Err(err).Msg("Attempt cost quote unavailable")
	}

	entry, err := s.entries.GetEntry(ctx, t.ID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("load entry", err)
	}
	if entry != nil {
		resp.HasEntry = true
		resp.AttemptsUsed = entry.AttemptsUsed
		resp.MaxAttempts = entry.MaxAttempts
	}
	resp.AttemptsRemaining = resp.MaxAttempts - resp.AttemptsUsed
	if resp.AttemptsRemaining < 0 {
		resp.AttemptsRemaining = 0
	}
	return resp, nil
}

// StartAttempt проводит оплату попытки и выдает одноразовый attempt_id.
// Порядок фиксированный: списание до инкремента, чтобы проигравший гонку за
// лимит получил возврат, а не бесплатную попытку.
func (s *gameService) StartAttempt(ctx context.Context, userID string) (*models.StartAttemptResponse, error) {
	t, err := s.tournaments.Current(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := s.entries.GetOrCreateEntry(ctx, t.ID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("load entry", err)
	}
	if entry.AttemptsUsed >= entry.MaxAttempts {
		return nil, apperrors.New(apperrors.ErrCodeMaxAttempts, "No attempts remaining")
	}

	costSats, err := s.quotes.USDToSats(ctx, s.attemptCostUSD)
	if err != nil {
		return nil, apperrors.NewTransientError("price quote unavailable", err)
	}

	description := fmt.Sprintf("Game attempt %d", entry.AttemptsUsed+1)
	newBalance, err := s.ledger.Debit(ctx, userID, costSats, walletmodels.TxBuyIn, description, t.ID)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewInternalError("debit attempt cost", err)
	}

	updated, err := s.entries.IncrementAttempt(ctx, entry.ID)
	if err != nil {
		s.refundAttempt(ctx, userID, costSats, t.ID)
		return nil, apperrors.NewInternalError("increment attempt", err)
	}
	if updated == nil {
		// Проиграли гонку за последнюю попытку. Деньги возвращаем.
		s.refundAttempt(ctx, userID, costSats, t.ID)
		return nil, apperrors.New(apperrors.ErrCodeMaxAttempts, "No attempts remaining")
	}

	if err := s.entries.UpdatePrizePool(ctx, t.ID, costSats); err != nil {
		logger.Error().Err(err).
			Str("tournament_id", t.ID).
			Int64("amount_sats", costSats).
			Msg("Failed to credit prize pool for attempt")
	}

	attemptID, err := mintAttemptID()
	if err != nil {
		return nil, apperrors.NewInternalError("mint attempt id", err)
	}
	active := &models.ActiveAttempt{
		UserID:        userID,
		EntryID:       updated.ID,
		TournamentID:  t.ID,
		AttemptNumber: updated.AttemptsUsed,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.store.Set(ctx, cache.AttemptKey(attemptID), active, attemptTTL); err != nil {
		return nil, apperrors.NewInternalError("store attempt", err)
	}

	logger.Info().
		Str("user_prefix", userPrefix(userID)).
		Str("tournament_id", t.ID).
		Int("attempt", updated.AttemptsUsed).
		Int64("cost_sats", costSats).
		Msg("Attempt started")

	return &models.StartAttemptResponse{
		AttemptID:         attemptID,
		AttemptNumber:     updated.AttemptsUsed,
		AttemptsRemaining: updated.MaxAttempts - updated.AttemptsUsed,
		CostSats:          costSats,
		CostUSD:           s.attemptCostUSD,
		NewBalanceSats:    newBalance,
		PrizePoolSats:     t.PrizePoolSats + costSats,
	}, nil
}

func (s *gameService) refundAttempt(ctx context.Context, userID string, amountSats int64, tournamentID string) {
	if _, err := s.ledger.Credit(ctx, userID, amountSats, walletmodels.TxRefund, "Attempt refund", tournamentID); err != nil {
		logger.Error().Err(err).
			Str("user_prefix", userPrefix(userID)).
			Int64("amount_sats", amountSats).
			Msg("Attempt refund failed")
	}
}

func (s *gameService) SubmitScore(ctx context.Context, userID string, req *models.SubmitRequest) (*models.SubmitResponse, error) {
	if err := validation.ValidateScoreSubmission(req.Score, req.Level, req.DurationMs, req.FrameCount, len(req.InputLog)); err != nil {
		return nil, apperrors.NewValidationError("submission", err.Error())
	}

	t, err := s.tournaments.Current(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := s.entries.GetEntry(ctx, t.ID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("load entry", err)
	}
	if entry == nil {
		return nil, apperrors.New(apperrors.ErrCodeNoEntry, "Not entered in today's tournament")
	}

	var attemptNumber int
	if req.AttemptID != "" {
		attemptNumber, err = s.claimAttempt(ctx, req.AttemptID, userID, entry.ID)
		if err != nil {
			return nil, err
		}
	} else if s.requireAttemptID {
		return nil, apperrors.NewValidationError("attemptId", "attemptId is required")
	}

	gate := EvaluateSubmission(req.Score, req.Level, req.DurationMs, req.FrameCount, req.InputLog)
	if !gate.Valid {
		logger.Warn().
			Str("correlator", rejectCorrelator(userID, time.Now())).
			Int("confidence", gate.Confidence).
			Strs("errors", gate.Errors).
			Strs("warnings", gate.Warnings).
			Msg("Score submission rejected")
	}

	session := &models.GameSession{
		EntryID:    entry.ID,
		Score:      req.Score,
		Level:      req.Level,
		DurationMs: req.DurationMs,
		InputHash:  hashInputLog(req.InputLog),
		Verified:   gate.Valid,
	}
	if _, err := s.sessions.InsertSession(ctx, session); err != nil {
		return nil, apperrors.NewInternalError("record session", err)
	}

	if !gate.Valid {
		return nil, apperrors.New(apperrors.ErrCodeValidationFailed, "Score failed validation").
			WithDetail("confidence", gate.Confidence)
	}

	prevBest := entry.BestScore
	var updated *tournamentmodels.Entry
	if attemptNumber > 0 {
		updated, err = s.entries.RecordAttemptScore(ctx, entry.ID, attemptNumber, req.Score)
	} else {
		updated, err = s.entries.UpdateBestScore(ctx, entry.ID, req.Score)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("record score", err)
	}

	logger.Info().
		Str("user_prefix", userPrefix(userID)).
		Str("tournament_id", t.ID).
		Int("attempt", attemptNumber).
		Int64("score", req.Score).
		Int64("best_score", updated.BestScore).
		Msg("Score accepted")

	return &models.SubmitResponse{
		Accepted:      true,
		AttemptNumber: attemptNumber,
		Score:         req.Score,
		BestScore:     updated.BestScore,
		IsNewBest:     req.Score > prevBest,
		AttemptScores: []*int64{updated.Attempt1Score, updated.Attempt2Score, updated.Attempt3Score},
	}, nil
}

// claimAttempt потребляет attempt_id ровно один раз. Гонку двух submit с
// одинаковым id решает Del: запись достается тому, у кого ключ еще
// существовал.
func (s *gameService) claimAttempt(ctx context.Context, attemptID, userID, entryID string) (int, error) {
	var active models.ActiveAttempt
	err := s.store.Get(ctx, cache.AttemptKey(attemptID), &active)
	if errors.Is(err, cache.ErrMiss) {
		return 0, apperrors.New(apperrors.ErrCodeInvalidAttempt, "Attempt expired or unknown")
	}
	if err != nil {
		return 0, apperrors.NewInternalError("load attempt", err)
	}
	if active.UserID != userID {
		return 0, apperrors.NewForbiddenError("Attempt belongs to another user")
	}
	if active.EntryID != entryID {
		return 0, apperrors.New(apperrors.ErrCodeInvalidAttempt, "Attempt does not match entry")
	}

	existed, err := s.store.Del(ctx, cache.AttemptKey(attemptID))
	if err != nil {
		return 0, apperrors.NewInternalError("claim attempt", err)
	}
	if !existed {
		return 0, apperrors.New(apperrors.ErrCodeInvalidAttempt, "Attempt already submitted")
	}
	return active.AttemptNumber, nil
}

func (s *gameService) Stats(ctx context.Context, userID string) (*models.StatsResponse, error) {
	t, err := s.tournaments.Current(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := s.entries.GetEntry(ctx, t.ID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("load entry", err)
	}
	if entry == nil {
		return nil, apperrors.New(apperrors.ErrCodeNoEntry, "Not entered in today's tournament")
	}
	stats, err := s.sessions.EntryStats(ctx, entry.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("load stats", err)
	}
	return stats, nil
}

func mintAttemptID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// hashInputLog фиксирует сырой ввод в аудите, не храня его целиком.
func hashInputLog(log []models.InputEvent) string {
	if len(log) == 0 {
		return ""
	}
	raw, err := json.Marshal(log)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func userPrefix(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
