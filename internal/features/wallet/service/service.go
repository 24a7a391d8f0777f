package service

import (
	"context"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/features/wallet/models"
	"lightning-tournament-backend/internal/features/wallet/repository"
	"lightning-tournament-backend/internal/platform/price"
)

const (
	defaultTxPageSize = 20
	maxTxPageSize     = 100
)

type WalletService interface {
	Balance(ctx context.Context, userID string) (*models.BalanceResponse, error)
	Transactions(ctx context.Context, userID string, limit, offset int) (*models.TransactionsResponse, error)
}

type walletService struct {
	repo   repository.WalletRepository
	oracle *price.Oracle
}

func NewWalletService(repo repository.WalletRepository, oracle *price.Oracle) WalletService {
	return &walletService{repo: repo, oracle: oracle}
}

// Balance возвращает баланс в сатоши и его долларовый эквивалент. Если оракул
// цены недоступен, долларовые поля обнуляются, а баланс в сатоши отдается
// как есть.
func (s *walletService) Balance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	sats, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewInternalError("load balance", err)
	}

	resp := &models.BalanceResponse{BalanceSats: sats}
	if rate, err := s.oracle.BTCUSD(ctx); err == nil {
		resp.BTCUSD = rate
		if usd, err := s.oracle.SatsToUSD(ctx, sats); err == nil {
			resp.BalanceUSD = usd
		}
	} else {
		logger.Warn().Err(err).Msg("Balance USD conversion unavailable")
	}
	return resp, nil
}

func (s *walletService) Transactions(ctx context.Context, userID string, limit, offset int) (*models.TransactionsResponse, error) {
	if limit <= 0 {
		limit = defaultTxPageSize
	}
	if limit > maxTxPageSize {
		limit = maxTxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	txs, total, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError("list transactions", err)
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	return &models.TransactionsResponse{
		Transactions: txs,
		Limit:        limit,
		Offset:       offset,
		Total:        total,
	}, nil
}
