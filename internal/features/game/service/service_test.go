package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/features/game/models"
	tournamentmodels "lightning-tournament-backend/internal/features/tournament/models"
	walletmodels "lightning-tournament-backend/internal/features/wallet/models"
)

type fakeTournaments struct {
	tournament *tournamentmodels.Tournament
}

func (f *fakeTournaments) Current(ctx context.Context) (*tournamentmodels.Tournament, error) {
	return f.tournament, nil
}

type fakeEntries struct {
	entry *tournamentmodels.Entry

	incrementDenied bool
	poolDelta       int64
	recordedK       int
	recordedScore   int64
}

func (f *fakeEntries) GetOrCreateEntry(ctx context.Context, tournamentID, userID string) (*tournamentmodels.Entry, error) {
	return f.entry, nil
}

func (f *fakeEntries) GetEntry(ctx context.Context, tournamentID, userID string) (*tournamentmodels.Entry, error) {
	return f.entry, nil
}

func (f *fakeEntries) IncrementAttempt(ctx context.Context, entryID string) (*tournamentmodels.Entry, error) {
	if f.incrementDenied || f.entry.AttemptsUsed >= f.entry.MaxAttempts {
		return nil, nil
	}
	f.entry.AttemptsUsed++
	return f.entry, nil
}

func (f *fakeEntries) RecordAttemptScore(ctx context.Context, entryID string, k int, score int64) (*tournamentmodels.Entry, error) {
	f.recordedK = k
	f.recordedScore = score
	if score > f.entry.BestScore {
		f.entry.BestScore = score
	}
	return f.entry, nil
}

func (f *fakeEntries) UpdateBestScore(ctx context.Context, entryID string, score int64) (*tournamentmodels.Entry, error) {
	if score > f.entry.BestScore {
		f.entry.BestScore = score
	}
	return f.entry, nil
}

func (f *fakeEntries) UpdatePrizePool(ctx context.Context, tournamentID string, deltaSats int64) error {
	f.poolDelta += deltaSats
	return nil
}

type fakeLedger struct {
	balance int64
	debits  []int64
	refunds []int64
}

func (f *fakeLedger) Debit(ctx context.Context, userID string, amountSats int64, txType walletmodels.TxType, description, reference string) (int64, error) {
	if amountSats > f.balance {
		return 0, apperrors.NewInsufficientBalanceError(f.balance, amountSats)
	}
	f.balance -= amountSats
	f.debits = append(f.debits, amountSats)
	return f.balance, nil
}

func (f *fakeLedger) Credit(ctx context.Context, userID string, amountSats int64, txType walletmodels.TxType, description, reference string) (int64, error) {
	f.balance += amountSats
	if txType == walletmodels.TxRefund {
		f.refunds = append(f.refunds, amountSats)
	}
	return f.balance, nil
}

type fakeQuotes struct{ satsPerUSD int64 }

func (f *fakeQuotes) USDToSats(ctx context.Context, usd float64) (int64, error) {
	return int64(usd * float64(f.satsPerUSD)), nil
}

type fakeGames struct {
	inserted []*models.GameSession
}

func (f *fakeGames) InsertSession(ctx context.Context, session *models.GameSession) (int64, error) {
	f.inserted = append(f.inserted, session)
	return int64(len(f.inserted)), nil
}

func (f *fakeGames) ListSessionsForEntry(ctx context.Context, entryID string) ([]*models.GameSession, error) {
	return f.inserted, nil
}

func (f *fakeGames) EntryStats(ctx context.Context, entryID string) (*models.StatsResponse, error) {
	return &models.StatsResponse{Sessions: len(f.inserted)}, nil
}

func newGameFixture(t *testing.T) (*gameService, *fakeEntries, *fakeLedger, *fakeGames) {
	t.Helper()
	store := cache.NewMemoryCache(1000)
	t.Cleanup(func() { _ = store.Close() })

	tournaments := &fakeTournaments{tournament: &tournamentmodels.Tournament{
		ID:            "t-1",
		Date:          "2025-06-01",
		BuyInSats:     1000,
		PrizePoolSats: 5000,
		Status:        tournamentmodels.StatusOpen,
	}}
	entries := &fakeEntries{entry: &tournamentmodels.Entry{
		ID:           "entry-1",
		TournamentID: "t-1",
		UserID:       "user-1",
		MaxAttempts:  3,
	}}
	ledger := &fakeLedger{balance: 10_000}
	games := &fakeGames{}

	svc := NewGameService(tournaments, entries, ledger, &fakeQuotes{satsPerUSD: 1000}, games, store, 5.0, 3, true).(*gameService)
	return svc, entries, ledger, games
}

func validSubmit(attemptID string) *models.SubmitRequest {
	return &models.SubmitRequest{
		AttemptID:  attemptID,
		Score:      1500,
		Level:      3,
		DurationMs: 150_000,
	}
}

func TestStartAttempt_DebitsAndFundsPool(t *testing.T) {
	ctx := context.Background()
	svc, entries, ledger, _ := newGameFixture(t)

	resp, err := svc.StartAttempt(ctx, "user-1")
	require.NoError(t, err)

	assert.Len(t, resp.AttemptID, 32)
	assert.Equal(t, 1, resp.AttemptNumber)
	assert.Equal(t, 2, resp.AttemptsRemaining)
	assert.Equal(t, int64(5000), resp.CostSats)
	assert.Equal(t, int64(5000), resp.NewBalanceSats)
	assert.Equal(t, int64(10_000), resp.PrizePoolSats)

	assert.Equal(t, []int64{5000}, ledger.debits)
	assert.Equal(t, int64(5000), entries.poolDelta)
}

func TestStartAttempt_CapReached(t *testing.T) {
	ctx := context.Background()
	svc, entries, ledger, _ := newGameFixture(t)
	entries.entry.AttemptsUsed = 3

	_, err := svc.StartAttempt(ctx, "user-1")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeMaxAttempts, appErr.Code)
	assert.Empty(t, ledger.debits)
}

func TestStartAttempt_RefundsOnLostRace(t *testing.T) {
	ctx := context.Background()
	svc, entries, ledger, _ := newGameFixture(t)
	// Сторож в базе отказал уже после списания.
	entries.incrementDenied = true

	_, err := svc.StartAttempt(ctx, "user-1")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeMaxAttempts, appErr.Code)

	assert.Equal(t, []int64{5000}, ledger.debits)
	assert.Equal(t, []int64{5000}, ledger.refunds)
	assert.Equal(t, int64(10_000), ledger.balance)
}

func TestStartAttempt_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger, _ := newGameFixture(t)
	ledger.balance = 100

	_, err := svc.StartAttempt(ctx, "user-1")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInsufficientBalance, appErr.Code)
}

func TestSubmitScore_ConsumesAttemptOnce(t *testing.T) {
	ctx := context.Background()
	svc, entries, _, _ := newGameFixture(t)

	started, err := svc.StartAttempt(ctx, "user-1")
	require.NoError(t, err)

	resp, err := svc.SubmitScore(ctx, "user-1", validSubmit(started.AttemptID))
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, 1, resp.AttemptNumber)
	assert.True(t, resp.IsNewBest)
	assert.Equal(t, 1, entries.recordedK)
	assert.Equal(t, int64(1500), entries.recordedScore)

	// Тот же attempt_id второй раз не проходит.
	_, err = svc.SubmitScore(ctx, "user-1", validSubmit(started.AttemptID))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInvalidAttempt, appErr.Code)
}

func TestSubmitScore_RequiresAttemptID(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newGameFixture(t)

	_, err := svc.SubmitScore(ctx, "user-1", validSubmit(""))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
}

func TestSubmitScore_ForeignAttempt(t *testing.T) {
	ctx := context.Background()
	svc, entries, _, _ := newGameFixture(t)

	started, err := svc.StartAttempt(ctx, "user-1")
	require.NoError(t, err)

	entries.entry.UserID = "user-2"
	_, err = svc.SubmitScore(ctx, "user-2", validSubmit(started.AttemptID))
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)
}

func TestSubmitScore_GateRejectStillAudited(t *testing.T) {
	ctx := context.Background()
	svc, _, _, games := newGameFixture(t)

	started, err := svc.StartAttempt(ctx, "user-1")
	require.NoError(t, err)

	// 10000 points in 100 seconds trips the score rate ceiling.
	req := validSubmit(started.AttemptID)
	req.Score = 10_000
	req.Level = 100
	req.DurationMs = 100_000

	_, err = svc.SubmitScore(ctx, "user-1", req)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, appErr.Code)

	// Отклоненный результат все равно записан для аудита.
	require.Len(t, games.inserted, 1)
	assert.False(t, games.inserted[0].Verified)
}
