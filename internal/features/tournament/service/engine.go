package service

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/features/tournament/models"
	"lightning-tournament-backend/internal/features/tournament/repository"
)

// payoutRetryAge is how old a pending payout must be before the retry loop
// picks it up again.
const payoutRetryAge = 5 * time.Minute

// payoutAlertThreshold is the failure count at which a payout starts being
// logged as an alert.
const payoutAlertThreshold = 5

// Payer is the outbound side of the Lightning backend.
type Payer interface {
	PayToLightningAddress(ctx context.Context, address string, amountSats int64, memo string) (string, error)
}

// Engine drives the daily tournament lifecycle: create at 00:00 UTC, close
// and pay out at 23:59 UTC, retry pending payouts every half hour. Close is
// serialized with a process-local flag; multi-process deployments need an
// external lock.
type Engine struct {
	repo            repository.TournamentRepository
	payer           Payer
	buyInSats       int64
	houseFeePercent int

	isProcessing atomic.Bool
}

func NewEngine(repo repository.TournamentRepository, payer Payer, buyInSats int64, houseFeePercent int) *Engine {
	return &Engine{
		repo:            repo,
		payer:           payer,
		buyInSats:       buyInSats,
		houseFeePercent: houseFeePercent,
	}
}

// CreateDailyTournament идемпотентно создает турнир на сегодняшнюю UTC-дату.
func (e *Engine) CreateDailyTournament(ctx context.Context) error {
	return e.createForDate(ctx, utcDate(time.Now()))
}

func (e *Engine) createForDate(ctx context.Context, date string) error {
	start, end := dayBounds(date)
	created, err := e.repo.CreateTournament(ctx, &models.Tournament{
		ID:        uuid.NewString(),
		Date:      date,
		BuyInSats: e.buyInSats,
		Status:    models.StatusOpen,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info().Str("date", date).Msg("Tournament created")
	}
	return nil
}

// CloseEndedTournaments закрывает все открытые турниры, чье время вышло.
func (e *Engine) CloseEndedTournaments(ctx context.Context) {
	if !e.isProcessing.CompareAndSwap(false, true) {
		logger.Warn().Msg("Tournament close already running, skipping tick")
		return
	}
	defer e.isProcessing.Store(false)

	tournaments, err := e.repo.ListOpenEnded(ctx, time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list ended tournaments")
		return
	}

	for _, t := range tournaments {
		if err := e.closeOne(ctx, t); err != nil {
			logger.Error().Err(err).Str("tournament_id", t.ID).Msg("Tournament close failed")
		}
	}
}

func (e *Engine) closeOne(ctx context.Context, t *models.Tournament) error {
	winners, err := e.repo.TopWinners(ctx, t.ID, len(payoutSplits))
	if err != nil {
		return fmt.Errorf("load winners: %w", err)
	}

	distributable := Distributable(t.PrizePoolSats, e.houseFeePercent)
	var payouts []*models.Payout
	for i, w := range winners {
		amount := int64(math.Floor(float64(distributable) * payoutSplits[i]))
		if amount <= 0 {
			continue
		}
		p := &models.Payout{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			UserID:       w.UserID,
			Place:        i + 1,
			AmountSats:   amount,
			Destination:  w.LightningAddress,
			Status:       models.PayoutPending,
		}
		created, err := e.repo.CreatePayout(ctx, p)
		if err != nil {
			return fmt.Errorf("create payout place %d: %w", p.Place, err)
		}
		if created {
			payouts = append(payouts, p)
		}
	}

	for _, p := range payouts {
		if err := e.ProcessPayout(ctx, p); err != nil {
			logger.Warn().
				Str("payout_id", p.ID).
				Int("place", p.Place).
				Err(err).
				Msg("Payout deferred to retry loop")
		}
	}

	closed, err := e.repo.CloseTournament(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if closed {
		logger.Info().
			Str("tournament_id", t.ID).
			Str("date", t.Date).
			Int64("prize_pool_sats", t.PrizePoolSats).
			Int("winners", len(payouts)).
			Msg("Tournament closed")
	}

	next := utcDate(time.Now().Add(24 * time.Hour))
	if err := e.createForDate(ctx, next); err != nil {
		logger.Error().Err(err).Str("date", next).Msg("Failed to schedule next tournament")
	}
	return nil
}

// RetryFailedPayouts перезапускает зависшие выплаты.
func (e *Engine) RetryFailedPayouts(ctx context.Context) {
	pending, err := e.repo.PendingPayouts(ctx, payoutRetryAge)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list pending payouts")
		return
	}
	for _, p := range pending {
		if err := e.ProcessPayout(ctx, p); err != nil {
			logger.Warn().Str("payout_id", p.ID).Err(err).Msg("Payout retry failed")
		}
	}
}

// ProcessPayout пытается провести одну выплату. При ошибке запись остается
// pending и подбирается циклом повторов.
func (e *Engine) ProcessPayout(ctx context.Context, p *models.Payout) error {
	logger.Info().
		Str("payout_id", p.ID).
		Str("user_prefix", userPrefix(p.UserID)).
		Int("place", p.Place).
		Int64("amount_sats", p.AmountSats).
		Str("destination", p.Destination).
		Msg("Processing payout")

	if p.Destination == "" {
		e.recordPayoutFailure(ctx, p, fmt.Errorf("winner has no lightning address"))
		return fmt.Errorf("payout %s: no destination", p.ID)
	}

	memo := fmt.Sprintf("Lightning Tournament Place %d Prize", p.Place)
	hash, err := e.payer.PayToLightningAddress(ctx, p.Destination, p.AmountSats, memo)
	if err != nil {
		e.recordPayoutFailure(ctx, p, err)
		return err
	}

	if err := e.repo.MarkPayoutPaid(ctx, p.ID, hash); err != nil {
		logger.Error().Err(err).Str("payout_id", p.ID).Msg("Paid but failed to mark payout")
		return err
	}
	logger.Info().
		Str("payout_id", p.ID).
		Str("payment_hash", hash[:8]+"…").
		Msg("Payout SUCCESS")
	return nil
}

func (e *Engine) recordPayoutFailure(ctx context.Context, p *models.Payout, cause error) {
	count, err := e.repo.IncrementPayoutFailure(ctx, p.ID)
	if err != nil {
		logger.Error().Err(err).Str("payout_id", p.ID).Msg("Failed to record payout failure")
		return
	}
	evt := logger.Warn()
	if count >= payoutAlertThreshold {
		evt = logger.Error().Str("alert", "PAYOUT-ALERT")
	}
	evt.
		Str("payout_id", p.ID).
		Int("failure_count", count).
		Err(cause).
		Msg("Payout FAILED")
}

func userPrefix(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
