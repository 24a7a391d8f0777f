package service

import (
	"context"
	"fmt"
	"time"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/common/validation"
	"lightning-tournament-backend/internal/features/payment/models"
	tournamentmodels "lightning-tournament-backend/internal/features/tournament/models"
	walletmodels "lightning-tournament-backend/internal/features/wallet/models"
	"lightning-tournament-backend/internal/platform/lnbits"
)

// IntentTTL is how long an unpaid invoice stays claimable.
const IntentTTL = 10 * time.Minute

// webhookMarkerTTL keeps idempotency markers long past any reasonable
// webhook retry window.
const webhookMarkerTTL = 24 * time.Hour

// Lightning is the invoice side of the Lightning backend.
type Lightning interface {
	CreateInvoice(ctx context.Context, amountSats int64, memo string) (*lnbits.Invoice, error)
	CheckPayment(ctx context.Context, hash string) (bool, error)
}

// Tournaments is what settling a buy-in needs from the tournament feature.
type Tournaments interface {
	Current(ctx context.Context) (*tournamentmodels.Tournament, error)
	HasEntry(ctx context.Context, tournamentID, userID string) (bool, error)
	// SettleBuyIn creates the entry and adds the amount to the prize pool in
	// one store transaction. Returns false when the entry already existed.
	SettleBuyIn(ctx context.Context, tournamentID, userID string, amountSats int64) (bool, error)
}

// Ledger is the wallet credit side used by deposit settlement.
type Ledger interface {
	Credit(ctx context.Context, userID string, amountSats int64, txType walletmodels.TxType, description, reference string) (int64, error)
}

// PaymentService converges the webhook path and the polling path to exactly
// one terminal action per payment hash.
type PaymentService interface {
	CreateDeposit(ctx context.Context, userID string, amountSats int64) (*models.InvoiceResponse, error)
	DepositStatus(ctx context.Context, userID, rawHash string) (*models.StatusResponse, error)
	CreateBuyIn(ctx context.Context, userID string) (*models.InvoiceResponse, error)
	BuyInStatus(ctx context.Context, userID, rawHash string) (*models.StatusResponse, error)
	// HandleWebhook processes a verified notification. The duplicate return
	// is true when a previous delivery already completed the settlement.
	HandleWebhook(ctx context.Context, payload *models.WebhookPayload) (duplicate bool, err error)
}

type paymentService struct {
	cache       cache.Cache
	lightning   Lightning
	tournaments Tournaments
	ledger      Ledger
}

func NewPaymentService(c cache.Cache, ln Lightning, t Tournaments, l Ledger) PaymentService {
	return &paymentService{cache: c, lightning: ln, tournaments: t, ledger: l}
}

// CreateDeposit выдает инвойс на пополнение кошелька. Если у пользователя уже
// есть живой неоплаченный инвойс, возвращается он же с остатком TTL.
func (s *paymentService) CreateDeposit(ctx context.Context, userID string, amountSats int64) (*models.InvoiceResponse, error) {
	if err := validation.ValidateDepositAmount(amountSats); err != nil {
		return nil, apperrors.NewValidationError("amountSats", err.Error())
	}

	if resp := s.reuseIntent(ctx, cache.UserDepositKey(userID), cache.DepositKey); resp != nil {
		return resp, nil
	}

	inv, err := s.lightning.CreateInvoice(ctx, amountSats, "Wallet deposit")
	if err != nil {
		return nil, err
	}
	hash, err := validation.NormalizePaymentHash(inv.PaymentHash)
	if err != nil {
		return nil, apperrors.NewInternalError("normalize payment hash", err)
	}

	intent := models.Intent{
		Kind:           models.IntentDeposit,
		UserID:         userID,
		AmountSats:     amountSats,
		PaymentRequest: inv.PaymentRequest,
		CreatedAt:      time.Now(),
	}
	if err := s.cache.Set(ctx, cache.DepositKey(hash), intent, IntentTTL); err != nil {
		return nil, apperrors.NewInternalError("store deposit intent", err)
	}
	if err := s.cache.Set(ctx, cache.UserDepositKey(userID), hash, IntentTTL); err != nil {
		logger.Warn().Err(err).Msg("Failed to store deposit reverse index")
	}

	return &models.InvoiceResponse{
		PaymentRequest: inv.PaymentRequest,
		PaymentHash:    hash,
		AmountSats:     amountSats,
		ExpiresIn:      int64(IntentTTL.Seconds()),
	}, nil
}

// CreateBuyIn выдает инвойс на участие в сегодняшнем турнире.
func (s *paymentService) CreateBuyIn(ctx context.Context, userID string) (*models.InvoiceResponse, error) {
	t, err := s.tournaments.Current(ctx)
	if err != nil {
		return nil, err
	}

	entered, err := s.tournaments.HasEntry(ctx, t.ID, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("check entry", err)
	}
	if entered {
		return nil, apperrors.New(apperrors.ErrCodeDuplicateEntry, "Already entered in today's tournament")
	}

	if resp := s.reuseIntent(ctx, cache.UserInvoiceKey(userID, t.ID), cache.InvoiceKey); resp != nil {
		return resp, nil
	}

	inv, err := s.lightning.CreateInvoice(ctx, t.BuyInSats, fmt.Sprintf("Tournament buy-in %s", t.Date))
	if err != nil {
		return nil, err
	}
	hash, err := validation.NormalizePaymentHash(inv.PaymentHash)
	if err != nil {
		return nil, apperrors.NewInternalError("normalize payment hash", err)
	}

	intent := models.Intent{
		Kind:           models.IntentBuyIn,
		UserID:         userID,
		TournamentID:   t.ID,
		AmountSats:     t.BuyInSats,
		PaymentRequest: inv.PaymentRequest,
		CreatedAt:      time.Now(),
	}
	if err := s.cache.Set(ctx, cache.InvoiceKey(hash), intent, IntentTTL); err != nil {
		return nil, apperrors.NewInternalError("store buy-in intent", err)
	}
	if err := s.cache.Set(ctx, cache.UserInvoiceKey(userID, t.ID), hash, IntentTTL); err != nil {
		logger.Warn().Err(err).Msg("Failed to store buy-in reverse index")
	}

	return &models.InvoiceResponse{
		PaymentRequest: inv.PaymentRequest,
		PaymentHash:    hash,
		AmountSats:     t.BuyInSats,
		ExpiresIn:      int64(IntentTTL.Seconds()),
	}, nil
}

// reuseIntent returns the caller's live intent via the reverse index, or nil.
func (s *paymentService) reuseIntent(ctx context.Context, reverseKey string, intentKey func(string) string) *models.InvoiceResponse {
	var hash string
	if err := s.cache.Get(ctx, reverseKey, &hash); err != nil {
		return nil
	}
	var intent models.Intent
	if err := s.cache.Get(ctx, intentKey(hash), &intent); err != nil {
		return nil
	}
	remaining, err := s.cache.TTL(ctx, intentKey(hash))
	if err != nil || remaining <= 0 {
		return nil
	}
	return &models.InvoiceResponse{
		PaymentRequest: intent.PaymentRequest,
		PaymentHash:    hash,
		AmountSats:     intent.AmountSats,
		ExpiresIn:      int64(remaining.Seconds()),
	}
}

func (s *paymentService) DepositStatus(ctx context.Context, userID, rawHash string) (*models.StatusResponse, error) {
	return s.pollStatus(ctx, userID, rawHash, cache.DepositKey, s.settleDeposit)
}

func (s *paymentService) BuyInStatus(ctx context.Context, userID, rawHash string) (*models.StatusResponse, error) {
	return s.pollStatus(ctx, userID, rawHash, cache.InvoiceKey, s.settleBuyIn)
}

// pollStatus is the polling producer of "payment observed" events. It shares
// its terminal actions with the webhook path; whichever observer claims the
// intent first performs them.
func (s *paymentService) pollStatus(ctx context.Context, userID, rawHash string, intentKey func(string) string, settle func(context.Context, string, *models.Intent) (bool, error)) (*models.StatusResponse, error) {
	hash, err := validation.NormalizePaymentHash(rawHash)
	if err != nil {
		return nil, apperrors.NewValidationError("hash", err.Error())
	}

	var intent models.Intent
	err = s.cache.Get(ctx, intentKey(hash), &intent)
	if err == cache.ErrMiss {
		// Intent gone: either already settled or expired unpaid. The
		// idempotency marker distinguishes the two.
		if _, terr := s.cache.TTL(ctx, cache.WebhookKey(hash)); terr == nil {
			return &models.StatusResponse{Paid: true, AlreadyProcessed: true}, nil
		}
		return &models.StatusResponse{Expired: true}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load intent", err)
	}
	if intent.UserID != userID {
		return nil, apperrors.NewForbiddenError("Payment belongs to another user")
	}

	paid, err := s.lightning.CheckPayment(ctx, hash)
	if err != nil {
		logger.Warn().Err(err).Msg("Payment status check failed")
		return &models.StatusResponse{Paid: false}, nil
	}
	if !paid {
		return &models.StatusResponse{Paid: false}, nil
	}

	claimed, err := settle(ctx, hash, &intent)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return &models.StatusResponse{Paid: true, AlreadyProcessed: true}, nil
	}
	return &models.StatusResponse{Paid: true, AmountSats: intent.AmountSats}, nil
}

// HandleWebhook processes a signature-verified notification.
func (s *paymentService) HandleWebhook(ctx context.Context, payload *models.WebhookPayload) (bool, error) {
	hash, err := validation.NormalizePaymentHash(payload.PaymentHash)
	if err != nil {
		return false, apperrors.NewValidationError("payment_hash", err.Error())
	}
	if !payload.Paid {
		return false, nil
	}

	fresh, err := s.cache.SetIfNotExists(ctx, cache.WebhookKey(hash), webhookMarkerTTL)
	if err != nil {
		return false, apperrors.NewInternalError("webhook idempotency marker", err)
	}
	if !fresh {
		// Seen before. If no intent survives, the previous handler finished
		// its work; otherwise it crashed mid-flight and this retry proceeds.
		buyInLive := s.intentExists(ctx, cache.InvoiceKey(hash))
		depositLive := s.intentExists(ctx, cache.DepositKey(hash))
		if !buyInLive && !depositLive {
			return true, nil
		}
	}

	var intent models.Intent
	if err := s.cache.Get(ctx, cache.InvoiceKey(hash), &intent); err == nil {
		_, err := s.settleBuyIn(ctx, hash, &intent)
		return false, err
	}
	if err := s.cache.Get(ctx, cache.DepositKey(hash), &intent); err == nil {
		claimed, err := s.settleDeposit(ctx, hash, &intent)
		if err != nil {
			return false, err
		}
		return !claimed, nil
	}

	// No intent for this hash: unknown or long-expired payment.
	logger.Warn().Str("payment_hash", hash[:8]+"…").Msg("Webhook for unknown payment")
	return false, nil
}

func (s *paymentService) intentExists(ctx context.Context, key string) bool {
	var intent models.Intent
	return s.cache.Get(ctx, key, &intent) == nil
}

// settleBuyIn runs the entry creation and pool credit in one store
// transaction; an already-existing entry counts as success. The intent is
// deleted only after commit, so a failed commit leaves it for a retry.
func (s *paymentService) settleBuyIn(ctx context.Context, hash string, intent *models.Intent) (bool, error) {
	created, err := s.tournaments.SettleBuyIn(ctx, intent.TournamentID, intent.UserID, intent.AmountSats)
	if err != nil {
		return false, apperrors.NewInternalError("settle buy-in", err)
	}

	existed, derr := s.cache.Del(ctx, cache.InvoiceKey(hash))
	if derr != nil {
		logger.Warn().Err(derr).Msg("Failed to delete settled buy-in intent")
	}
	_, _ = s.cache.Del(ctx, cache.UserInvoiceKey(intent.UserID, intent.TournamentID))
	_, _ = s.cache.SetIfNotExists(ctx, cache.WebhookKey(hash), webhookMarkerTTL)

	if created {
		logger.Info().
			Str("tournament_id", intent.TournamentID).
			Int64("amount_sats", intent.AmountSats).
			Msg("Buy-in settled")
	}
	return existed, nil
}

// settleDeposit claims the intent via Del; only the winner of the claim
// credits the wallet.
func (s *paymentService) settleDeposit(ctx context.Context, hash string, intent *models.Intent) (bool, error) {
	existed, err := s.cache.Del(ctx, cache.DepositKey(hash))
	if err != nil {
		return false, apperrors.NewInternalError("claim deposit intent", err)
	}
	if !existed {
		return false, nil
	}

	_, err = s.ledger.Credit(ctx, intent.UserID, intent.AmountSats, walletmodels.TxDeposit, "Lightning deposit", hash)
	if err != nil {
		// Put the intent back so a retry can finish the credit.
		remaining := IntentTTL - time.Since(intent.CreatedAt)
		if remaining < time.Minute {
			remaining = time.Minute
		}
		if rerr := s.cache.Set(ctx, cache.DepositKey(hash), *intent, remaining); rerr != nil {
			logger.Error().Err(rerr).Msg("Failed to restore deposit intent after credit failure")
		}
		return false, apperrors.NewInternalError("credit deposit", err)
	}

	_, _ = s.cache.Del(ctx, cache.UserDepositKey(intent.UserID))
	_, _ = s.cache.SetIfNotExists(ctx, cache.WebhookKey(hash), webhookMarkerTTL)
	logger.Info().Int64("amount_sats", intent.AmountSats).Msg("Deposit settled")
	return true, nil
}
