package postgres

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/features/wallet/models"
)

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance_sats FROM wallets WHERE user_id=$1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, apperrors.NewNotFoundError("wallet")
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit пополняет баланс и пишет запись в журнал одной транзакцией.
func (r *WalletRepository) Credit(ctx context.Context, userID string, amountSats int64, txType models.TxType, description, reference string) (int64, error) {
	if amountSats <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amountSats)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var newBalance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance_sats = balance_sats + $2, updated_at = now()
		 WHERE user_id = $1 RETURNING balance_sats`,
		userID, amountSats).Scan(&newBalance)
	if err == sql.ErrNoRows {
		err = apperrors.NewNotFoundError("wallet")
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	if err = r.journal(ctx, tx, userID, txType, amountSats, description, reference); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Debit списывает средства. Гард balance_sats >= amount стоит прямо в UPDATE:
// при гонке двух списаний строка обновится только если денег хватает, без
// SELECT FOR UPDATE.
func (r *WalletRepository) Debit(ctx context.Context, userID string, amountSats int64, txType models.TxType, description, reference string) (int64, error) {
	if amountSats <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amountSats)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var newBalance int64
	err = tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance_sats = balance_sats - $2, updated_at = now()
		 WHERE user_id = $1 AND balance_sats >= $2 RETURNING balance_sats`,
		userID, amountSats).Scan(&newBalance)
	if err == sql.ErrNoRows {
		// Either no wallet or not enough funds; read the balance for the
		// error snapshot outside the failed update.
		var balance int64
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT balance_sats FROM wallets WHERE user_id=$1`, userID).Scan(&balance); scanErr == sql.ErrNoRows {
			err = apperrors.NewNotFoundError("wallet")
			return 0, err
		}
		err = apperrors.NewInsufficientBalanceError(balance, amountSats)
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	// Журнал хранит знаковые дельты: списание пишется с минусом, чтобы
	// sum(amount_sats) по пользователю всегда равнялась balance_sats.
	if err = r.journal(ctx, tx, userID, txType, -amountSats, description, reference); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *WalletRepository) journal(ctx context.Context, tx *sql.Tx, userID string, txType models.TxType, amountSats int64, description, reference string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount_sats, description, reference)
		 VALUES ($1, $2, $3, $4, NULLIF($5,''))`,
		userID, string(txType), amountSats, description, reference)
	return err
}

func (r *WalletRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM transactions WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, amount_sats, description, COALESCE(reference,''), created_at
		 FROM transactions WHERE user_id=$1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountSats, &t.Description, &t.Reference, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &t)
	}
	return out, total, rows.Err()
}
