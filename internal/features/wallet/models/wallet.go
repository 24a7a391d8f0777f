package models

import "time"

// TxType классифицирует записи журнала.
type TxType string

const (
	TxDeposit TxType = "deposit"
	TxBuyIn   TxType = "buy_in"
	TxPayout  TxType = "payout"
	TxRefund  TxType = "refund"
)

// Wallet хранит баланс пользователя в сатоши. Балансы меняются только вместе
// с записью в журнал транзакций, в одной транзакции БД.
type Wallet struct {
	UserID      string    `json:"user_id"`
	BalanceSats int64     `json:"balance_sats"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Transaction is one append-only journal row. AmountSats is the signed balance
// delta: credits positive, debits negative, so the ledger sums to the balance.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"-"`
	Type        TxType    `json:"type"`
	AmountSats  int64     `json:"amountSats"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type BalanceResponse struct {
	BalanceSats int64   `json:"balanceSats"`
	BalanceUSD  float64 `json:"balanceUsd"`
	BTCUSD      float64 `json:"btcUsd"`
}

type DepositRequest struct {
	AmountSats int64 `json:"amountSats" binding:"required"`
}

type TransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
	Total        int64          `json:"total"`
}
