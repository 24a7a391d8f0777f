package repository

import (
	"context"

	"lightning-tournament-backend/internal/features/wallet/models"
)

// WalletRepository is the ledger. Credit and Debit mutate the balance and
// append the journal row in one database transaction; Debit enforces the
// non-negative balance invariant inside the UPDATE itself.
type WalletRepository interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amountSats int64, txType models.TxType, description, reference string) (int64, error)
	Debit(ctx context.Context, userID string, amountSats int64, txType models.TxType, description, reference string) (int64, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, int64, error)
}
