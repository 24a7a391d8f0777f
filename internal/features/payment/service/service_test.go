package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/features/payment/models"
	tournamentmodels "lightning-tournament-backend/internal/features/tournament/models"
	walletmodels "lightning-tournament-backend/internal/features/wallet/models"
	"lightning-tournament-backend/internal/platform/lnbits"
)

type stubLightning struct {
	invoice *lnbits.Invoice
	paid    bool
	err     error
}

func (s *stubLightning) CreateInvoice(ctx context.Context, amountSats int64, memo string) (*lnbits.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.invoice, nil
}

func (s *stubLightning) CheckPayment(ctx context.Context, hash string) (bool, error) {
	return s.paid, s.err
}

type stubTournaments struct {
	tournament *tournamentmodels.Tournament
	hasEntry   bool

	settleCalls int
	settled     bool
}

func (s *stubTournaments) Current(ctx context.Context) (*tournamentmodels.Tournament, error) {
	return s.tournament, nil
}

func (s *stubTournaments) HasEntry(ctx context.Context, tournamentID, userID string) (bool, error) {
	return s.hasEntry, nil
}

func (s *stubTournaments) SettleBuyIn(ctx context.Context, tournamentID, userID string, amountSats int64) (bool, error) {
	s.settleCalls++
	if s.settled {
		return false, nil
	}
	s.settled = true
	return true, nil
}

type stubLedger struct {
	credits []int64
	err     error
}

func (s *stubLedger) Credit(ctx context.Context, userID string, amountSats int64, txType walletmodels.TxType, description, reference string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.credits = append(s.credits, amountSats)
	return amountSats, nil
}

const testHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func newFixture(t *testing.T) (*paymentService, *stubLightning, *stubTournaments, *stubLedger, cache.Cache) {
	t.Helper()
	store := cache.NewMemoryCache(1000)
	t.Cleanup(func() { _ = store.Close() })

	ln := &stubLightning{invoice: &lnbits.Invoice{PaymentHash: testHash, PaymentRequest: "lnbc1..."}}
	tn := &stubTournaments{tournament: &tournamentmodels.Tournament{
		ID:        "t-1",
		Date:      "2025-06-01",
		BuyInSats: 1000,
		Status:    tournamentmodels.StatusOpen,
	}}
	ledger := &stubLedger{}

	svc := NewPaymentService(store, ln, tn, ledger).(*paymentService)
	return svc, ln, tn, ledger, store
}

func TestCreateDeposit_ReusesLiveIntent(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := newFixture(t)

	first, err := svc.CreateDeposit(ctx, "user-1", 5000)
	require.NoError(t, err)
	assert.Equal(t, testHash, first.PaymentHash)

	second, err := svc.CreateDeposit(ctx, "user-1", 5000)
	require.NoError(t, err)
	assert.Equal(t, first.PaymentHash, second.PaymentHash)
	assert.Equal(t, first.PaymentRequest, second.PaymentRequest)
	assert.LessOrEqual(t, second.ExpiresIn, first.ExpiresIn)
}

func TestCreateDeposit_RejectsBadAmounts(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := newFixture(t)

	for _, amount := range []int64{0, -10, 5, 10_000_001} {
		_, err := svc.CreateDeposit(ctx, "user-1", amount)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok, "amount %d", amount)
		assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
	}
}

func TestCreateBuyIn_DuplicateEntry(t *testing.T) {
	ctx := context.Background()
	svc, _, tn, _, _ := newFixture(t)
	tn.hasEntry = true

	_, err := svc.CreateBuyIn(ctx, "user-1")
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDuplicateEntry, appErr.Code)
}

func TestHandleWebhook_SettlesBuyInOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, tn, _, _ := newFixture(t)

	_, err := svc.CreateBuyIn(ctx, "user-1")
	require.NoError(t, err)

	dup, err := svc.HandleWebhook(ctx, &models.WebhookPayload{PaymentHash: testHash, Paid: true})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, tn.settleCalls)

	// Повторная доставка того же уведомления не трогает хранилище.
	dup, err = svc.HandleWebhook(ctx, &models.WebhookPayload{PaymentHash: testHash, Paid: true})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, 1, tn.settleCalls)
}

func TestHandleWebhook_IgnoresUnpaid(t *testing.T) {
	ctx := context.Background()
	svc, _, tn, _, _ := newFixture(t)

	_, err := svc.CreateBuyIn(ctx, "user-1")
	require.NoError(t, err)

	dup, err := svc.HandleWebhook(ctx, &models.WebhookPayload{PaymentHash: testHash, Paid: false})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 0, tn.settleCalls)
}

func TestHandleWebhook_RejectsMalformedHash(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := newFixture(t)

	_, err := svc.HandleWebhook(ctx, &models.WebhookPayload{PaymentHash: "nonsense", Paid: true})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
}

func TestDepositSettlement_CreditsOnce(t *testing.T) {
	ctx := context.Background()
	svc, ln, _, ledger, _ := newFixture(t)

	_, err := svc.CreateDeposit(ctx, "user-1", 5000)
	require.NoError(t, err)
	ln.paid = true

	status, err := svc.DepositStatus(ctx, "user-1", testHash)
	require.NoError(t, err)
	assert.True(t, status.Paid)
	assert.Equal(t, int64(5000), status.AmountSats)
	assert.Equal(t, []int64{5000}, ledger.credits)

	// Второй опрос после расчета видит маркер, а не повторный кредит.
	status, err = svc.DepositStatus(ctx, "user-1", testHash)
	require.NoError(t, err)
	assert.True(t, status.Paid)
	assert.True(t, status.AlreadyProcessed)
	assert.Equal(t, []int64{5000}, ledger.credits)
}

func TestDepositSettlement_RestoresIntentOnCreditFailure(t *testing.T) {
	ctx := context.Background()
	svc, ln, _, ledger, store := newFixture(t)

	_, err := svc.CreateDeposit(ctx, "user-1", 5000)
	require.NoError(t, err)
	ln.paid = true
	ledger.err = errors.New("database down")

	_, err = svc.DepositStatus(ctx, "user-1", testHash)
	require.Error(t, err)

	// Intent вернулся на место, повторная попытка доводит кредит до конца.
	var intent models.Intent
	require.NoError(t, store.Get(ctx, cache.DepositKey(testHash), &intent))

	ledger.err = nil
	status, err := svc.DepositStatus(ctx, "user-1", testHash)
	require.NoError(t, err)
	assert.True(t, status.Paid)
	assert.Equal(t, []int64{5000}, ledger.credits)
}

func TestPollStatus_OwnershipAndExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := newFixture(t)

	_, err := svc.CreateDeposit(ctx, "user-1", 5000)
	require.NoError(t, err)

	_, err = svc.DepositStatus(ctx, "someone-else", testHash)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeForbidden, appErr.Code)

	// Unknown hash with no marker reads as expired.
	unknown := strings.Repeat("bb", 32)
	status, err := svc.DepositStatus(ctx, "user-1", unknown)
	require.NoError(t, err)
	assert.True(t, status.Expired)
}
